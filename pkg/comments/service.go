package comments

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

type CreateCommentOptions struct {
	AudiobookID int
	Content     string
}

func (svc *Service) CreateComment(ctx context.Context, author *models.User, opts CreateCommentOptions) (*models.Comment, error) {
	now := time.Now()
	comment := &models.Comment{
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      author.ID,
		AudiobookID: opts.AudiobookID,
		Content:     opts.Content,
	}

	_, err := svc.db.
		NewInsert().
		Model(comment).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	comment.User = author
	return comment, nil
}

func (svc *Service) RetrieveComment(ctx context.Context, id int) (*models.Comment, error) {
	comment := &models.Comment{}

	err := svc.db.
		NewSelect().
		Model(comment).
		Relation("User").
		Where("c.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Comment")
		}
		return nil, errors.WithStack(err)
	}

	return comment, nil
}

func (svc *Service) DeleteComment(ctx context.Context, comment *models.Comment) error {
	_, err := svc.db.
		NewDelete().
		Model(comment).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}
