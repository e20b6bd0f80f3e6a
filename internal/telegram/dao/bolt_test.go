package dao

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/reportcloud/relaybot/internal/fileid"
	"github.com/reportcloud/relaybot/internal/telegram/model"
)

func openTestBolt(t *testing.T) Store {
	t.Helper()

	s, err := OpenBolt(filepath.Join(t.TempDir(), "relay.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return s
}

func TestBoltSaveAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestBolt(t)

	a := newTestArtifact(42, 7)
	require.NoError(t, s.SaveArtifact(ctx, a))

	got, err := s.GetArtifact(ctx, a.FileID)
	require.NoError(t, err)
	require.Equal(t, a.FileID, got.FileID)
	require.Equal(t, a.FileName, got.FileName)
	require.Equal(t, a.RelayMessageID, got.RelayMessageID)
	require.True(t, a.CreatedAt.Equal(got.CreatedAt))

	_, err = s.GetArtifact(ctx, fileid.Mint(42, time.Now(), 999))
	require.True(t, errors.Is(err, model.ErrNotFound))
}

func TestBoltRejectsDuplicateFileID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestBolt(t)

	a := newTestArtifact(42, 7)
	require.NoError(t, s.SaveArtifact(ctx, a))
	require.True(t, errors.Is(s.SaveArtifact(ctx, a), model.ErrDuplicateFileID))

	n, err := s.CountArtifacts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestBoltListArtifactsByUploader(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestBolt(t)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.SaveArtifact(ctx, newTestArtifact(42, i)))
	}
	require.NoError(t, s.SaveArtifact(ctx, newTestArtifact(99, 4)))

	mine, err := s.ListArtifactsByUploader(ctx, 42)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	for _, a := range mine {
		require.EqualValues(t, 42, a.UploaderID)
	}
}

func TestBoltUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestBolt(t)

	require.NoError(t, s.SaveUser(ctx, 42))
	require.NoError(t, s.SaveUser(ctx, 42))
	require.NoError(t, s.SaveUser(ctx, -1002627719555))

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{42, -1002627719555}, users)
}

func TestBoltReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "relay.bolt")

	s, err := OpenBolt(path)
	require.NoError(t, err)
	a := newTestArtifact(42, 7)
	require.NoError(t, s.SaveArtifact(ctx, a))
	require.NoError(t, s.SaveUser(ctx, 42))
	require.NoError(t, s.Close(ctx))

	reopened, err := OpenBolt(path)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	got, err := reopened.GetArtifact(ctx, a.FileID)
	require.NoError(t, err)
	require.Equal(t, a.FileID, got.FileID)

	n, err := reopened.CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
