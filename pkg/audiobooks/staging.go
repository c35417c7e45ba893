package audiobooks

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/taletunes/taletunes/pkg/uploads"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentPuts bounds how many files of one upload are written at once.
const maxConcurrentPuts = 4

type stagedFiles struct {
	covers models.CoverKeys
	audio  string
}

func (s *stagedFiles) keys() []string {
	keys := append([]string{}, s.covers...)
	if s.audio != "" {
		keys = append(keys, s.audio)
	}
	return keys
}

// stageFiles writes the covers and audio file to the store concurrently.
// Cover order is preserved. When any write fails, the files already written
// are removed before returning.
func (svc *Service) stageFiles(ctx context.Context, covers []*uploads.File, audio *uploads.File) (*stagedFiles, error) {
	staged := &stagedFiles{
		covers: make(models.CoverKeys, len(covers)),
		audio:  storage.NewKey(models.StoragePrefixAudio, audio.Ext),
	}
	for i, cover := range covers {
		staged.covers[i] = storage.NewKey(models.StoragePrefixCovers, cover.Ext)
	}

	var mu sync.Mutex
	written := []string{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPuts)

	store := svc.store
	put := func(key string, file *uploads.File) {
		g.Go(func() error {
			if err := putFile(gctx, store, key, file); err != nil {
				return err
			}
			mu.Lock()
			written = append(written, key)
			mu.Unlock()
			return nil
		})
	}
	for i, cover := range covers {
		put(staged.covers[i], cover)
	}
	put(staged.audio, audio)

	if err := g.Wait(); err != nil {
		logger.FromContext(ctx).Err(err).Warn("staging failed", logger.Data{"written": len(written)})
		svc.orphans.RemoveFiles(context.WithoutCancel(ctx), store, written, models.OrphanReasonUploadAborted)
		return nil, err
	}

	return staged, nil
}

func putFile(ctx context.Context, store storage.Store, key string, file *uploads.File) error {
	f, err := file.Header.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	err = store.Put(ctx, key, f, file.Header.Size, file.ContentType)
	return errors.Wrapf(err, "failed to store %s", file.Header.Filename)
}
