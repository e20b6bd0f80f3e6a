package dao

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/boltdb/bolt"

	"github.com/reportcloud/relaybot/internal/telegram/model"
)

var (
	bucketArtifacts = []byte("artifacts")
	bucketUsers     = []byte("users")
)

// boltStore keeps both logs in a single embedded key/value database.
type boltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the bolt-backed store at path.
func OpenBolt(path string) (Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt db %q", path)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketArtifacts, bucketUsers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "create bucket %q", name)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}

	return &boltStore{db: db}, nil
}

func (s *boltStore) SaveArtifact(ctx context.Context, a *model.Artifact) error {
	if err := validateArtifact(a); err != nil {
		return errors.WithStack(err)
	}

	buf, err := json.Marshal(a)
	if err != nil {
		return errors.Wrapf(err, "marshal artifact %q", a.FileID)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		key := []byte(a.FileID)
		if b.Get(key) != nil {
			return errors.Wrap(model.ErrDuplicateFileID, a.FileID)
		}

		return errors.Wrapf(b.Put(key, buf), "put artifact %q", a.FileID)
	})
}

func (s *boltStore) GetArtifact(ctx context.Context, fileID string) (*model.Artifact, error) {
	var a model.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(bucketArtifacts).Get([]byte(fileID))
		if buf == nil {
			return errors.Wrap(model.ErrNotFound, fileID)
		}

		return errors.Wrapf(json.Unmarshal(buf, &a), "unmarshal artifact %q", fileID)
	})
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (s *boltStore) ListArtifactsByUploader(ctx context.Context, uploaderID int64) ([]*model.Artifact, error) {
	var out []*model.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).ForEach(func(k, v []byte) error {
			var a model.Artifact
			if err := json.Unmarshal(v, &a); err != nil {
				return errors.Wrapf(err, "unmarshal artifact %q", k)
			}

			if a.UploaderID == uploaderID {
				out = append(out, &a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *boltStore) CountArtifacts(ctx context.Context) (int64, error) {
	return s.countBucket(bucketArtifacts)
}

func (s *boltStore) SaveUser(ctx context.Context, uid int64) error {
	key := []byte(strconv.FormatInt(uid, 10))
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get(key) != nil {
			return nil
		}

		return errors.Wrapf(
			b.Put(key, []byte(strconv.FormatInt(time.Now().Unix(), 10))),
			"put user %d", uid)
	})
}

func (s *boltStore) ListUsers(ctx context.Context) ([]int64, error) {
	var out []int64
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, _ []byte) error {
			uid, err := strconv.ParseInt(string(k), 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parse user key %q", k)
			}

			out = append(out, uid)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *boltStore) CountUsers(ctx context.Context) (int64, error) {
	return s.countBucket(bucketUsers)
}

func (s *boltStore) countBucket(name []byte) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(name).Stats().KeyN)
		return nil
	})

	return n, errors.Wrapf(err, "count bucket %q", name)
}

func (s *boltStore) Close(ctx context.Context) error {
	return errors.Wrap(s.db.Close(), "close bolt db")
}
