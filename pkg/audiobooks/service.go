package audiobooks

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/access"
	"github.com/taletunes/taletunes/pkg/codes"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/taletunes/taletunes/pkg/orphans"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/taletunes/taletunes/pkg/uploads"
	"github.com/uptrace/bun"
)

var errCodeTaken = errcodes.ValidationError("The generated code has already been taken.")

type Service struct {
	db      *bun.DB
	store   storage.Store
	orphans *orphans.Service
}

func NewService(db *bun.DB, store storage.Store) *Service {
	return &Service{db, store, orphans.NewService(db)}
}

type CreateAudiobookOptions struct {
	Title         string
	Author        string
	Description   *string
	Duration      *string
	Category      string
	IsPublic      bool
	GeneratedCode *string
	Covers        []*uploads.File
	Audio         *uploads.File
	// RoomID attaches the new audiobook to the room in the same transaction.
	// Room uploads are always private.
	RoomID *int
}

// CreateAudiobook stores the uploaded files and then inserts the audiobook
// row that references them. If the row can't be committed the staged files
// are removed again.
func (svc *Service) CreateAudiobook(ctx context.Context, owner *models.User, opts CreateAudiobookOptions) (*models.Audiobook, error) {
	log := logger.FromContext(ctx)

	if opts.GeneratedCode != nil {
		taken, err := svc.codeTaken(ctx, svc.db, *opts.GeneratedCode)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errCodeTaken
		}
	}

	staged, err := svc.stageFiles(ctx, opts.Covers, opts.Audio)
	if err != nil {
		return nil, err
	}
	log.Info("staged audiobook files", logger.Data{"cover_count": len(staged.covers), "audio_key": staged.audio})

	now := time.Now()
	book := &models.Audiobook{
		CreatedAt:     now,
		UpdatedAt:     now,
		UserID:        owner.ID,
		Title:         opts.Title,
		Author:        opts.Author,
		Description:   opts.Description,
		Duration:      opts.Duration,
		CoverImages:   staged.covers,
		AudioFile:     staged.audio,
		Category:      opts.Category,
		IsPublic:      opts.IsPublic && opts.RoomID == nil,
		GeneratedCode: opts.GeneratedCode,
	}

	err = svc.insertAudiobook(ctx, book, opts.RoomID)
	if err != nil {
		log.Err(err).Warn("audiobook insert failed, removing staged files", logger.Data{"storage_keys": staged.keys()})
		svc.orphans.RemoveFiles(ctx, svc.store, staged.keys(), models.OrphanReasonUploadAborted)
		return nil, err
	}

	book.User = owner
	return book, nil
}

// insertAudiobook commits the row, minting a share code when the caller
// didn't supply one. A freshly minted code that loses a race for the unique
// index is replaced and the insert retried.
func (svc *Service) insertAudiobook(ctx context.Context, book *models.Audiobook, roomID *int) error {
	mint := book.GeneratedCode == nil

	for attempt := 0; attempt < codes.MaxAttempts; attempt++ {
		err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			if mint {
				code, err := codes.Unique(ctx, models.GeneratedCodeLength, func(ctx context.Context, code string) (bool, error) {
					return svc.codeTaken(ctx, tx, code)
				})
				if err != nil {
					return err
				}
				book.GeneratedCode = &code
			}

			_, err := tx.NewInsert().Model(book).Returning("*").Exec(ctx)
			if err != nil {
				return err
			}

			if roomID != nil {
				_, err = tx.NewInsert().Model(&models.RoomAudiobook{
					CreatedAt:   book.CreatedAt,
					RoomID:      *roomID,
					AudiobookID: book.ID,
				}).Exec(ctx)
				if err != nil {
					return errors.WithStack(err)
				}
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !codes.IsUniqueViolation(err) {
			return errors.WithStack(err)
		}
		if !mint {
			return errCodeTaken
		}
		book.ID = 0
	}
	return errors.WithStack(codes.ErrExhausted)
}

func (svc *Service) codeTaken(ctx context.Context, db bun.IDB, code string) (bool, error) {
	exists, err := db.NewSelect().
		Model((*models.Audiobook)(nil)).
		Where("a.generated_code = ?", code).
		Exists(ctx)
	return exists, errors.WithStack(err)
}

type RetrieveAudiobookOptions struct {
	ID            *int
	GeneratedCode *string
	// WithDetails loads comments with their authors and the users who
	// favorited the audiobook.
	WithDetails bool
}

func (svc *Service) RetrieveAudiobook(ctx context.Context, opts RetrieveAudiobookOptions) (*models.Audiobook, error) {
	book := &models.Audiobook{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("User")

	if opts.ID != nil {
		q = q.Where("a.id = ?", *opts.ID)
	}
	if opts.GeneratedCode != nil {
		q = q.Where("a.generated_code = ?", *opts.GeneratedCode)
	}
	if opts.WithDetails {
		q = q.
			Relation("Comments", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("c.created_at ASC", "c.id ASC")
			}).
			Relation("Comments.User").
			Relation("FavoritedBy")
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Audiobook")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// ListOwned returns the user's own audiobooks, newest first.
func (svc *Service) ListOwned(ctx context.Context, userID int) ([]*models.Audiobook, error) {
	books := []*models.Audiobook{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Relation("User").
		Where("a.user_id = ?", userID).
		Order("a.created_at DESC", "a.id DESC").
		Scan(ctx)
	return books, errors.WithStack(err)
}

// ListPublicFromOthers returns every public audiobook not uploaded by the
// user, shuffled.
func (svc *Service) ListPublicFromOthers(ctx context.Context, userID int) ([]*models.Audiobook, error) {
	books := []*models.Audiobook{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Relation("User").
		Where("a.user_id != ?", userID).
		Where("a.is_public = ?", true).
		OrderExpr("RANDOM()").
		Scan(ctx)
	return books, errors.WithStack(err)
}

// ListFavorites returns the user's favorites that they can still see, most
// recently favorited first.
func (svc *Service) ListFavorites(ctx context.Context, user *models.User) ([]*models.Audiobook, error) {
	books := []*models.Audiobook{}
	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("User").
		Join("JOIN favorites AS f ON f.audiobook_id = a.id").
		Where("f.user_id = ?", user.ID).
		Order("f.created_at DESC", "f.id DESC")
	err := access.VisibleAudiobooks(q, user).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, book := range books {
		book.IsFavorited = true
	}
	return books, nil
}

// ListPublic returns every public audiobook, newest first.
func (svc *Service) ListPublic(ctx context.Context) ([]*models.Audiobook, error) {
	books := []*models.Audiobook{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Relation("User").
		Where("a.is_public = ?", true).
		Order("a.created_at DESC", "a.id DESC").
		Scan(ctx)
	return books, errors.WithStack(err)
}

// MarkFavorites sets IsFavorited on the books the user has favorited.
func (svc *Service) MarkFavorites(ctx context.Context, user *models.User, books ...*models.Audiobook) error {
	if user == nil || len(books) == 0 {
		return nil
	}
	ids := make([]int, 0, len(books))
	for _, book := range books {
		ids = append(ids, book.ID)
	}

	var favorited []int
	err := svc.db.
		NewSelect().
		Model((*models.Favorite)(nil)).
		Column("f.audiobook_id").
		Where("f.user_id = ?", user.ID).
		Where("f.audiobook_id IN (?)", bun.In(ids)).
		Scan(ctx, &favorited)
	if err != nil {
		return errors.WithStack(err)
	}

	set := make(map[int]bool, len(favorited))
	for _, id := range favorited {
		set[id] = true
	}
	for _, book := range books {
		book.IsFavorited = set[book.ID]
	}
	return nil
}

type UpdateAudiobookOptions struct {
	Columns []string
}

func (svc *Service) UpdateAudiobook(ctx context.Context, book *models.Audiobook, opts UpdateAudiobookOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	book.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// ToggleFavorite flips the user's favorite on the audiobook and returns the
// new state.
func (svc *Service) ToggleFavorite(ctx context.Context, user *models.User, book *models.Audiobook) (bool, error) {
	favorited := false
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.Favorite)(nil)).
			Where("user_id = ?", user.ID).
			Where("audiobook_id = ?", book.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}

		_, err = tx.NewInsert().Model(&models.Favorite{
			CreatedAt:   time.Now(),
			UserID:      user.ID,
			AudiobookID: book.ID,
		}).Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		favorited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return favorited, nil
}

// DeleteAudiobook removes the audiobook row together with its favorites,
// comments, and room attachments, then deletes its files. Files that can't
// be deleted are left for the orphan sweeper.
func (svc *Service) DeleteAudiobook(ctx context.Context, book *models.Audiobook) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*models.Favorite)(nil),
			(*models.Comment)(nil),
			(*models.RoomAudiobook)(nil),
		} {
			_, err := tx.NewDelete().
				Model(model).
				Where("audiobook_id = ?", book.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		_, err := tx.NewDelete().
			Model(book).
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	svc.orphans.RemoveFiles(ctx, svc.store, book.StorageKeys(), models.OrphanReasonAudiobookDeleted)
	return nil
}
