// Package orphans tracks stored files whose rows are gone but whose removal
// from storage failed, so they can be retried later.
package orphans

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/uptrace/bun"
)

type Service struct {
	db bun.IDB
}

func NewService(db bun.IDB) *Service {
	return &Service{db}
}

// Record remembers keys for a later sweep. Keys already recorded are left
// alone.
func (svc *Service) Record(ctx context.Context, keys []string, reason string) error {
	if len(keys) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]*models.OrphanedFile, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, &models.OrphanedFile{
			CreatedAt:  now,
			StorageKey: key,
			Reason:     reason,
		})
	}
	_, err := svc.db.NewInsert().
		Model(&rows).
		On("CONFLICT (storage_key) DO NOTHING").
		Exec(ctx)
	return errors.WithStack(err)
}

type ListOptions struct {
	Limit int
}

// List returns recorded files, least recently tried first.
func (svc *Service) List(ctx context.Context, opts ListOptions) ([]*models.OrphanedFile, error) {
	var files []*models.OrphanedFile
	q := svc.db.NewSelect().
		Model(&files).
		OrderExpr("o.last_tried_at IS NOT NULL, o.last_tried_at ASC, o.id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return files, nil
}

// Resolve forgets a file once it is gone from storage.
func (svc *Service) Resolve(ctx context.Context, id int) error {
	_, err := svc.db.NewDelete().
		Model((*models.OrphanedFile)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

// MarkFailed records another failed removal attempt.
func (svc *Service) MarkFailed(ctx context.Context, file *models.OrphanedFile, cause error) error {
	now := time.Now()
	msg := cause.Error()
	file.Attempts++
	file.LastError = &msg
	file.LastTriedAt = &now
	_, err := svc.db.NewUpdate().
		Model(file).
		Column("attempts", "last_error", "last_tried_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// RemoveFiles deletes keys from storage. Keys that can't be deleted are
// recorded for the sweeper rather than failing the caller, since the rows
// that referenced them are already gone.
func (svc *Service) RemoveFiles(ctx context.Context, store storage.Store, keys []string, reason string) {
	log := logger.FromContext(ctx)
	var failed []string
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			log.Err(err).Warn("failed to delete stored file", logger.Data{"storage_key": key})
			failed = append(failed, key)
		}
	}
	if len(failed) == 0 {
		return
	}
	// The request context may already be cancelled, which is often why the
	// deletes failed in the first place.
	if err := svc.Record(context.WithoutCancel(ctx), failed, reason); err != nil {
		log.Err(err).Error("failed to record orphaned files", logger.Data{"storage_keys": failed})
	}
}
