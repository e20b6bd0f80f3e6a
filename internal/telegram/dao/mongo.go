package dao

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reportcloud/relaybot/internal/telegram/model"
	mongodb "github.com/reportcloud/relaybot/library/db/mongo"
)

const (
	colRelayFiles = "relay_files"
	colRelayUsers = "relay_users"
)

// mongoStore keeps the logs in MongoDB, with the file id as the
// document key so uniqueness is enforced by the database.
type mongoStore struct {
	db mongodb.DB
}

// NewMongo wraps an established mongo connection as a Store.
func NewMongo(db mongodb.DB) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) filesCol() *mongoLib.Collection {
	return s.db.GetCol(colRelayFiles)
}

func (s *mongoStore) usersCol() *mongoLib.Collection {
	return s.db.GetCol(colRelayUsers)
}

func (s *mongoStore) SaveArtifact(ctx context.Context, a *model.Artifact) error {
	if err := validateArtifact(a); err != nil {
		return errors.WithStack(err)
	}

	_, err := s.filesCol().InsertOne(ctx, bson.M{
		"_id":              a.FileID,
		"file_id":          a.FileID,
		"uploader_id":      a.UploaderID,
		"file_name":        a.FileName,
		"kind":             a.Kind,
		"mime":             a.MIME,
		"file_size":        a.FileSize,
		"relay_message_id": a.RelayMessageID,
		"local_path":       a.LocalPath,
		"created_at":       a.CreatedAt,
	})
	if mongoLib.IsDuplicateKeyError(err) {
		return errors.Wrap(model.ErrDuplicateFileID, a.FileID)
	}

	return errors.Wrapf(err, "insert artifact %q", a.FileID)
}

func (s *mongoStore) GetArtifact(ctx context.Context, fileID string) (*model.Artifact, error) {
	a := new(model.Artifact)
	err := s.filesCol().
		FindOne(ctx, bson.M{"_id": fileID}).
		Decode(a)
	if errors.Is(err, mongoLib.ErrNoDocuments) {
		return nil, errors.Wrap(model.ErrNotFound, fileID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find artifact %q", fileID)
	}

	return a, nil
}

func (s *mongoStore) ListArtifactsByUploader(ctx context.Context, uploaderID int64) ([]*model.Artifact, error) {
	cur, err := s.filesCol().Find(ctx,
		bson.M{"uploader_id": uploaderID},
		options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, errors.Wrapf(err, "find artifacts of uploader %d", uploaderID)
	}

	var out []*model.Artifact
	if err = cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode artifacts")
	}

	return out, nil
}

func (s *mongoStore) CountArtifacts(ctx context.Context) (int64, error) {
	n, err := s.filesCol().CountDocuments(ctx, bson.M{})
	return n, errors.Wrap(err, "count artifacts")
}

func (s *mongoStore) SaveUser(ctx context.Context, uid int64) error {
	_, err := s.usersCol().UpdateOne(ctx,
		bson.M{"telegram_uid": uid},
		bson.M{
			"$setOnInsert": bson.M{
				"telegram_uid": uid,
				"created_at":   time.Now().UTC(),
			},
		},
		options.Update().SetUpsert(true),
	)

	return errors.Wrapf(err, "upsert user %d", uid)
}

func (s *mongoStore) ListUsers(ctx context.Context) ([]int64, error) {
	cur, err := s.usersCol().Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "find users")
	}

	var docs []struct {
		UID int64 `bson:"telegram_uid"`
	}
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}

	out := make([]int64, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.UID)
	}

	return out, nil
}

func (s *mongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.usersCol().CountDocuments(ctx, bson.M{})
	return n, errors.Wrap(err, "count users")
}

func (s *mongoStore) Close(ctx context.Context) error {
	return errors.Wrap(s.db.Close(ctx), "close mongo store")
}
