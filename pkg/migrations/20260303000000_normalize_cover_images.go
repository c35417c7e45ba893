package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
)

func init() {
	// The array form is a superset of the legacy forms, so there is nothing to
	// undo.
	down := func(_ context.Context, _ *bun.DB) error {
		return nil
	}

	Migrations.MustRegister(normalizeCoverImages, down)
}

// normalizeCoverImages rewrites rows imported from the old schema, which may
// hold a single cover path (bare or as a JSON string), into the array form.
func normalizeCoverImages(ctx context.Context, db *bun.DB) error {
	var rows []struct {
		ID          int    `bun:"id"`
		CoverImages string `bun:"cover_images"`
	}
	err := db.NewSelect().
		Table("audiobooks").
		Column("id", "cover_images").
		Where("cover_images NOT LIKE '[%'").
		Scan(ctx, &rows)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, row := range rows {
		keys, err := models.NormalizeCoverKeys(row.CoverImages)
		if err != nil {
			return errors.Wrapf(err, "audiobook %d", row.ID)
		}
		_, err = db.NewUpdate().
			Table("audiobooks").
			Set("cover_images = ?", keys).
			Where("id = ?", row.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
