// Package dao is the data access layer for artifact records and the
// user registry. Both behave as append-only logs: records are written
// once and never mutated, and every derived count is computed from the
// store itself rather than from in-process counters.
package dao

import (
	"context"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"

	"github.com/reportcloud/relaybot/internal/fileid"
	"github.com/reportcloud/relaybot/internal/telegram/model"
	mongodb "github.com/reportcloud/relaybot/library/db/mongo"
)

// Store persists artifact records and the user registry.
//
// Appends are atomic with respect to each other; reads observe either
// the pre- or post-append state, never a torn record.
type Store interface {
	SaveArtifact(ctx context.Context, a *model.Artifact) error
	GetArtifact(ctx context.Context, fileID string) (*model.Artifact, error)
	ListArtifactsByUploader(ctx context.Context, uploaderID int64) ([]*model.Artifact, error)
	CountArtifacts(ctx context.Context) (int64, error)

	// SaveUser registers a user id; saving a known id is a no-op.
	SaveUser(ctx context.Context, uid int64) error
	ListUsers(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int64, error)

	Close(ctx context.Context) error
}

// New builds the store selected by `settings.store.backend`.
func New(ctx context.Context) (Store, error) {
	backend := gconfig.Shared.GetString("settings.store.backend")
	switch backend {
	case "", "file":
		return OpenFileLog(gconfig.Shared.GetString("settings.store.dir"))
	case "bolt":
		return OpenBolt(gconfig.Shared.GetString("settings.store.bolt_path"))
	case "mongo":
		db, err := mongodb.NewDB(ctx, mongodb.DialInfo{
			Addr:   gconfig.Shared.GetString("settings.store.mongo.addr"),
			DBName: gconfig.Shared.GetString("settings.store.mongo.db"),
			User:   gconfig.Shared.GetString("settings.store.mongo.user"),
			Pwd:    gconfig.Shared.GetString("settings.store.mongo.pwd"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "dial mongo store")
		}

		return NewMongo(db), nil
	default:
		return nil, errors.Errorf("unknown store backend %q", backend)
	}
}

// validateArtifact enforces the record invariants shared by every
// backend: the file id must round-trip through the codec and must have
// been minted for the same uploader.
func validateArtifact(a *model.Artifact) error {
	if a == nil {
		return errors.Errorf("nil artifact")
	}

	parts, err := fileid.Decode(a.FileID)
	if err != nil {
		return errors.Wrapf(err, "file id %q does not round-trip", a.FileID)
	}
	if parts.UploaderID != a.UploaderID {
		return errors.Errorf("file id %q minted for uploader %d, record says %d",
			a.FileID, parts.UploaderID, a.UploaderID)
	}
	if a.Kind == "" {
		return errors.Errorf("artifact %q has no media kind", a.FileID)
	}

	return nil
}
