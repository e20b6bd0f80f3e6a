package dao

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/reportcloud/relaybot/internal/telegram/model"
	"github.com/reportcloud/relaybot/library/log"
)

const (
	usersFileName = "users.txt"
	filesFileName = "files.log"

	fieldSep  = "\t"
	numFields = 9
)

// fileLog is the default backend: two append-only flat files, rebuilt
// into an in-memory index on open.
//
//	users.txt: one user id per line, de-duplicated on write
//	files.log: one tab-separated artifact record per line
type fileLog struct {
	mu  sync.RWMutex
	dir string

	usersF *os.File
	filesF *os.File

	artifacts map[string]*model.Artifact
	order     []string
	users     map[int64]struct{}
	userOrder []int64
}

// OpenFileLog opens (creating if needed) the flat-file store in dir.
func OpenFileLog(dir string) (Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store dir %q", dir)
	}

	s := &fileLog{
		dir:       dir,
		artifacts: map[string]*model.Artifact{},
		users:     map[int64]struct{}{},
	}

	if err := s.loadUsers(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := s.loadArtifacts(); err != nil {
		return nil, errors.WithStack(err)
	}

	var err error
	if s.usersF, err = openAppend(filepath.Join(dir, usersFileName)); err != nil {
		return nil, errors.WithStack(err)
	}
	if s.filesF, err = openAppend(filepath.Join(dir, filesFileName)); err != nil {
		_ = s.usersF.Close()
		return nil, errors.WithStack(err)
	}

	log.Logger.Info("open file store",
		zap.String("dir", dir),
		zap.Int("artifacts", len(s.artifacts)),
		zap.Int("users", len(s.users)))
	return s, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q for append", path)
	}

	return f, nil
}

func (s *fileLog) loadUsers() error {
	path := filepath.Join(s.dir, usersFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		uid, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			log.Logger.Warn("skip corrupt user line", zap.String("line", line))
			continue
		}

		if _, ok := s.users[uid]; !ok {
			s.users[uid] = struct{}{}
			s.userOrder = append(s.userOrder, uid)
		}
	}

	return errors.Wrapf(scanner.Err(), "scan %q", path)
}

func (s *fileLog) loadArtifacts() error {
	path := filepath.Join(s.dir, filesFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		a, err := decodeRecordLine(line)
		if err != nil {
			// A torn append from a crash shows up here; the record was
			// never acknowledged, so skipping it is safe.
			log.Logger.Warn("skip corrupt artifact line", zap.Error(err))
			continue
		}

		if _, ok := s.artifacts[a.FileID]; ok {
			log.Logger.Warn("skip duplicate artifact line", zap.String("file_id", a.FileID))
			continue
		}
		s.artifacts[a.FileID] = a
		s.order = append(s.order, a.FileID)
	}

	return errors.Wrapf(scanner.Err(), "scan %q", path)
}

func (s *fileLog) SaveArtifact(ctx context.Context, a *model.Artifact) error {
	if err := validateArtifact(a); err != nil {
		return errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.artifacts[a.FileID]; ok {
		return errors.Wrap(model.ErrDuplicateFileID, a.FileID)
	}

	line := encodeRecordLine(a)
	if _, err := s.filesF.WriteString(line + "\n"); err != nil {
		return errors.Wrapf(err, "append artifact %q", a.FileID)
	}
	if err := s.filesF.Sync(); err != nil {
		return errors.Wrapf(err, "sync artifact %q", a.FileID)
	}

	clone := *a
	s.artifacts[a.FileID] = &clone
	s.order = append(s.order, a.FileID)
	return nil
}

func (s *fileLog) GetArtifact(ctx context.Context, fileID string) (*model.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[fileID]
	if !ok {
		return nil, errors.Wrap(model.ErrNotFound, fileID)
	}

	clone := *a
	return &clone, nil
}

func (s *fileLog) ListArtifactsByUploader(ctx context.Context, uploaderID int64) ([]*model.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Artifact
	for _, id := range s.order {
		if a := s.artifacts[id]; a.UploaderID == uploaderID {
			clone := *a
			out = append(out, &clone)
		}
	}

	return out, nil
}

func (s *fileLog) CountArtifacts(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.artifacts)), nil
}

func (s *fileLog) SaveUser(ctx context.Context, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[uid]; ok {
		return nil
	}

	if _, err := fmt.Fprintf(s.usersF, "%d\n", uid); err != nil {
		return errors.Wrapf(err, "append user %d", uid)
	}
	if err := s.usersF.Sync(); err != nil {
		return errors.Wrapf(err, "sync user %d", uid)
	}

	s.users[uid] = struct{}{}
	s.userOrder = append(s.userOrder, uid)
	return nil
}

func (s *fileLog) ListUsers(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int64, len(s.userOrder))
	copy(out, s.userOrder)
	return out, nil
}

func (s *fileLog) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *fileLog) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uErr := s.usersF.Close()
	fErr := s.filesF.Close()
	if uErr != nil {
		return errors.Wrap(uErr, "close users file")
	}

	return errors.Wrap(fErr, "close files log")
}

func encodeRecordLine(a *model.Artifact) string {
	return strings.Join([]string{
		strconv.FormatInt(a.UploaderID, 10),
		a.FileID,
		sanitizeField(a.FileName),
		string(a.Kind),
		sanitizeField(a.MIME),
		strconv.FormatInt(a.FileSize, 10),
		strconv.Itoa(a.RelayMessageID),
		sanitizeField(a.LocalPath),
		strconv.FormatInt(a.CreatedAt.Unix(), 10),
	}, fieldSep)
}

func decodeRecordLine(line string) (*model.Artifact, error) {
	fields := strings.Split(line, fieldSep)
	if len(fields) != numFields {
		return nil, errors.Errorf("want %d fields, got %d", numFields, len(fields))
	}

	uploader, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "uploader field")
	}
	size, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "size field")
	}
	relayID, err := strconv.Atoi(fields[6])
	if err != nil {
		return nil, errors.Wrap(err, "relay message field")
	}
	createdAt, err := strconv.ParseInt(fields[8], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "created_at field")
	}

	a := &model.Artifact{
		UploaderID:     uploader,
		FileID:         fields[1],
		FileName:       fields[2],
		Kind:           model.MediaKind(fields[3]),
		MIME:           fields[4],
		FileSize:       size,
		RelayMessageID: relayID,
		LocalPath:      fields[7],
		CreatedAt:      time.Unix(createdAt, 0).UTC(),
	}
	if err := validateArtifact(a); err != nil {
		return nil, errors.WithStack(err)
	}

	return a, nil
}

// sanitizeField keeps a free-form value on one line and off the field
// separator.
func sanitizeField(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.ReplaceAll(v, fieldSep, " ")
}
