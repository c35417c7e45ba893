package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/orphans"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/uptrace/bun"
)

// sweepBatchSize bounds how many orphaned files one sweep retries.
const sweepBatchSize = 100

// Worker periodically retries deleting files that were orphaned when their
// audiobook was removed or their upload aborted.
type Worker struct {
	interval time.Duration
	log      logger.Logger

	orphanService *orphans.Service
	store         storage.Store

	shutdown chan struct{}
	done     chan struct{}
}

func New(cfg *config.Config, db *bun.DB, store storage.Store) *Worker {
	return &Worker{
		interval: cfg.OrphanSweepInterval,
		log:      logger.New(),

		orphanService: orphans.NewService(db),
		store:         store,

		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.sweepLoop()
}

func (w *Worker) sweepLoop() {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-w.shutdown:
			w.done <- struct{}{}
			return
		case <-timer.C:
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				timer.Reset(w.interval)
				continue
			}
			log := w.log.ID(id.String())
			ctx := log.WithContext(context.Background())
			if _, err := w.Sweep(ctx); err != nil {
				log.Err(err).Error("orphan sweep error")
			}
			timer.Reset(w.interval)
		}
	}
}

// Sweep makes one pass over the recorded orphans and returns how many were
// removed from storage.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	files, err := w.orphanService.List(ctx, orphans.ListOptions{Limit: sweepBatchSize})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, file := range files {
		if err := w.store.Delete(ctx, file.StorageKey); err != nil {
			log.Err(err).Warn("orphaned file still not deletable", logger.Data{"storage_key": file.StorageKey, "attempts": file.Attempts + 1})
			if err := w.orphanService.MarkFailed(ctx, file, err); err != nil {
				return removed, err
			}
			continue
		}
		if err := w.orphanService.Resolve(ctx, file.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if len(files) > 0 {
		log.Info("orphan sweep finished", logger.Data{"checked": len(files), "removed": removed})
	}
	return removed, nil
}

func (w *Worker) Shutdown() {
	close(w.shutdown)
	<-w.done
}
