package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/database"
	"github.com/taletunes/taletunes/pkg/models"
)

func TestNormalizeCoverImages(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(config.NewForTest())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = BringUpToDate(ctx, db)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO users (name, username, email) VALUES ('A', 'a', 'a@example.com')`)
	require.NoError(t, err)
	legacy := []string{
		`audiobooks/covers/bare.jpg`,
		`"audiobooks\/covers\/quoted.jpg"`,
		`["audiobooks/covers/one.jpg","audiobooks/covers/two.png"]`,
	}
	for _, cover := range legacy {
		_, err = db.ExecContext(ctx,
			`INSERT INTO audiobooks (user_id, title, author, cover_images, audio_file, category) VALUES (1, 't', 'a', ?, 'audiobooks/audio/x.mp3', 'Fantasy')`,
			cover)
		require.NoError(t, err)
	}

	require.NoError(t, normalizeCoverImages(ctx, db))

	var raw []string
	err = db.NewSelect().Table("audiobooks").Column("cover_images").Order("id ASC").Scan(ctx, &raw)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`["audiobooks/covers/bare.jpg"]`,
		`["audiobooks/covers/quoted.jpg"]`,
		`["audiobooks/covers/one.jpg","audiobooks/covers/two.png"]`,
	}, raw)

	var books []*models.Audiobook
	err = db.NewSelect().Model(&books).Order("a.id ASC").Scan(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, models.CoverKeys{"audiobooks/covers/quoted.jpg"}, books[1].CoverImages)
}
