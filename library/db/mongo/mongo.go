// Package mongo provides a wrapper for the MongoDB client.
package mongo

import (
	"context"
	"net/url"
	"time"

	"github.com/Laisky/errors/v2"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultDialTimeout = 30 * time.Second

// DB mongo database accessor
type DB interface {
	GetCol(colName string) *mongoLib.Collection
	Close(ctx context.Context) error
}

// DialInfo defines the MongoDB connection information.
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
}

type db struct {
	cli    *mongoLib.Client
	dbName string
}

// NewDB dials the database and verifies the connection with a ping.
func NewDB(ctx context.Context, dialInfo DialInfo) (DB, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	cli, err := mongoLib.Connect(ctx,
		options.Client().ApplyURI(buildMongoURI(dialInfo)))
	if err != nil {
		return nil, errors.Wrapf(err, "connect mongo %q", dialInfo.Addr)
	}

	if err = cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, errors.Wrapf(err, "ping mongo %q", dialInfo.Addr)
	}

	return &db{
		cli:    cli,
		dbName: dialInfo.DBName,
	}, nil
}

func buildMongoURI(dialInfo DialInfo) string {
	uri := &url.URL{
		Scheme: "mongodb",
		Host:   dialInfo.Addr,
		Path:   "/" + dialInfo.DBName,
	}
	if dialInfo.User != "" || dialInfo.Pwd != "" {
		uri.User = url.UserPassword(dialInfo.User, dialInfo.Pwd)
	}

	return uri.String()
}

func (d *db) GetCol(colName string) *mongoLib.Collection {
	return d.cli.Database(d.dbName).Collection(colName)
}

func (d *db) Close(ctx context.Context) error {
	return errors.Wrap(d.cli.Disconnect(ctx), "disconnect mongo")
}
