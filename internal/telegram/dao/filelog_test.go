package dao

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/reportcloud/relaybot/internal/fileid"
	"github.com/reportcloud/relaybot/internal/telegram/model"
)

func newTestArtifact(uploader int64, relayMsgID int) *model.Artifact {
	created := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	return &model.Artifact{
		FileID:         fileid.Mint(uploader, created, relayMsgID),
		UploaderID:     uploader,
		FileName:       "report.pdf",
		Kind:           model.KindDocument,
		MIME:           "application/pdf",
		FileSize:       2048,
		RelayMessageID: relayMsgID,
		CreatedAt:      created,
	}
}

func TestFileLogSaveAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenFileLog(t.TempDir())
	require.NoError(t, err)
	defer s.Close(ctx)

	a := newTestArtifact(42, 7)
	require.NoError(t, s.SaveArtifact(ctx, a))

	got, err := s.GetArtifact(ctx, a.FileID)
	require.NoError(t, err)
	require.Equal(t, a, got)

	_, err = s.GetArtifact(ctx, fileid.Mint(42, time.Now(), 999))
	require.True(t, errors.Is(err, model.ErrNotFound))

	n, err := s.CountArtifacts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestFileLogRejectsDuplicateFileID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenFileLog(t.TempDir())
	require.NoError(t, err)
	defer s.Close(ctx)

	a := newTestArtifact(42, 7)
	require.NoError(t, s.SaveArtifact(ctx, a))
	require.True(t, errors.Is(s.SaveArtifact(ctx, a), model.ErrDuplicateFileID))

	n, err := s.CountArtifacts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestFileLogRejectsInvalidRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenFileLog(t.TempDir())
	require.NoError(t, err)
	defer s.Close(ctx)

	bad := newTestArtifact(42, 7)
	bad.FileID = "not-a-file-id"
	require.Error(t, s.SaveArtifact(ctx, bad))

	// the uploader embedded in the id must match the record
	mismatch := newTestArtifact(42, 8)
	mismatch.UploaderID = 43
	require.Error(t, s.SaveArtifact(ctx, mismatch))

	n, err := s.CountArtifacts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestFileLogReloadAfterRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenFileLog(dir)
	require.NoError(t, err)

	a := newTestArtifact(42, 7)
	a.FileName = "weird\tname\nwith breaks.pdf"
	b := newTestArtifact(43, 8)
	b.Kind = model.KindVoice
	b.FileName = "Voice"
	b.MIME = "audio/ogg"
	require.NoError(t, s.SaveArtifact(ctx, a))
	require.NoError(t, s.SaveArtifact(ctx, b))
	require.NoError(t, s.SaveUser(ctx, 42))
	require.NoError(t, s.SaveUser(ctx, 43))
	require.NoError(t, s.Close(ctx))

	reopened, err := OpenFileLog(dir)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	got, err := reopened.GetArtifact(ctx, a.FileID)
	require.NoError(t, err)
	// field separators in the display name are flattened on write
	require.Equal(t, "weird name with breaks.pdf", got.FileName)
	require.Equal(t, a.FileSize, got.FileSize)
	require.Equal(t, a.RelayMessageID, got.RelayMessageID)

	users, err := reopened.ListUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{42, 43}, users)

	n, err := reopened.CountArtifacts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestFileLogSkipsCorruptLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenFileLog(dir)
	require.NoError(t, err)
	a := newTestArtifact(42, 7)
	require.NoError(t, s.SaveArtifact(ctx, a))
	require.NoError(t, s.Close(ctx))

	// simulate a torn append
	f, err := os.OpenFile(filepath.Join(dir, filesFileName), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("42\t42_17159")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := OpenFileLog(dir)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	n, err := reopened.CountArtifacts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestFileLogUserDedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenFileLog(t.TempDir())
	require.NoError(t, err)
	defer s.Close(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveUser(ctx, 42))
	}
	require.NoError(t, s.SaveUser(ctx, 43))

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestFileLogConcurrentAppends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenFileLog(t.TempDir())
	require.NoError(t, err)
	defer s.Close(ctx)

	const workers = 16
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// distinct relay message ids, as assigned by the relay
				a := newTestArtifact(int64(w+1), w*perWorker+i+1)
				if err := s.SaveArtifact(ctx, a); err != nil {
					errs <- err
				}
				if err := s.SaveUser(ctx, int64(w+1)); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append: %+v", err)
	}

	n, err := s.CountArtifacts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, workers*perWorker, n)

	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, workers, users)
}

func TestFileLogListArtifactsByUploader(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenFileLog(t.TempDir())
	require.NoError(t, err)
	defer s.Close(ctx)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.SaveArtifact(ctx, newTestArtifact(42, i)))
	}
	require.NoError(t, s.SaveArtifact(ctx, newTestArtifact(99, 4)))

	mine, err := s.ListArtifactsByUploader(ctx, 42)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	for i, a := range mine {
		require.EqualValues(t, 42, a.UploaderID)
		require.Equal(t, i+1, a.RelayMessageID, "insertion order preserved")
	}

	none, err := s.ListArtifactsByUploader(ctx, 1234)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFileLogFailedSaveLeavesCountUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenFileLog(t.TempDir())
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.SaveArtifact(ctx, newTestArtifact(42, 1)))

	before, err := s.CountArtifacts(ctx)
	require.NoError(t, err)

	bad := newTestArtifact(42, 2)
	bad.Kind = ""
	require.Error(t, s.SaveArtifact(ctx, bad))

	after, err := s.CountArtifacts(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	_, err = s.GetArtifact(ctx, bad.FileID)
	require.True(t, errors.Is(err, model.ErrNotFound),
		fmt.Sprintf("unexpected err: %v", err))
}
