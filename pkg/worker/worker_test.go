package worker

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/internal/testgen"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/taletunes/taletunes/pkg/orphans"
	"github.com/taletunes/taletunes/pkg/storage"
)

type brokenStore struct {
	storage.Store
	broken bool
}

func (s *brokenStore) Delete(ctx context.Context, key string) error {
	if s.broken {
		return errors.New("storage offline")
	}
	return s.Store.Delete(ctx, key)
}

func TestWorker_Sweep(t *testing.T) {
	db := testgen.NewDB(t)
	ctx := context.Background()

	local, err := storage.NewLocalStore(t.TempDir(), "/storage")
	require.NoError(t, err)
	key := "audiobooks/audio/left-behind.mp3"
	require.NoError(t, local.Put(ctx, key, bytes.NewReader(testgen.MP3()), 0, "audio/mpeg"))

	store := &brokenStore{Store: local, broken: true}
	cfg := config.NewForTest()
	w := New(cfg, db, store)

	svc := orphans.NewService(db)
	require.NoError(t, svc.Record(ctx, []string{key}, models.OrphanReasonAudiobookDeleted))

	removed, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	files, err := svc.List(ctx, orphans.ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 1, files[0].Attempts)

	store.broken = false
	removed, err = w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	files, err = svc.List(ctx, orphans.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)

	_, _, err = local.Open(ctx, key)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorker_StartShutdown(t *testing.T) {
	db := testgen.NewDB(t)
	local, err := storage.NewLocalStore(t.TempDir(), "/storage")
	require.NoError(t, err)

	cfg := config.NewForTest()
	cfg.OrphanSweepInterval = 10 * time.Millisecond
	w := New(cfg, db, local)

	svc := orphans.NewService(db)
	require.NoError(t, svc.Record(context.Background(), []string{"audiobooks/covers/gone.jpg"}, models.OrphanReasonUploadAborted))

	w.Start()
	require.Eventually(t, func() bool {
		files, err := svc.List(context.Background(), orphans.ListOptions{})
		return err == nil && len(files) == 0
	}, 2*time.Second, 10*time.Millisecond)
	w.Shutdown()
}
