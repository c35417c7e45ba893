package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/access"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
)

// Service handles user operations.
type Service struct {
	db *bun.DB
}

// NewService creates a new users service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// RetrieveByUsername looks a user up by username, ignoring case.
func (s *Service) RetrieveByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Where("u.username = ? COLLATE NOCASE", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

type ProfileStats struct {
	RoomCount      int `json:"room_count"`
	FavoritesCount int `json:"favorites_count"`
}

// Stats counts the rooms the user belongs to and the audiobooks they have
// favorited.
func (s *Service) Stats(ctx context.Context, userID int) (*ProfileStats, error) {
	rooms, err := s.db.NewSelect().
		Model((*models.RoomMember)(nil)).
		Where("rm.user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	favorites, err := s.db.NewSelect().
		Model((*models.Favorite)(nil)).
		Where("f.user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &ProfileStats{RoomCount: rooms, FavoritesCount: favorites}, nil
}

// ListAudiobooks returns the owner's audiobooks that viewer may see, newest
// first. viewer may be nil.
func (s *Service) ListAudiobooks(ctx context.Context, ownerID int, viewer *models.User) ([]*models.Audiobook, error) {
	books := []*models.Audiobook{}
	q := s.db.NewSelect().
		Model(&books).
		Relation("User").
		Where("a.user_id = ?", ownerID).
		Order("a.created_at DESC", "a.id DESC")
	err := access.VisibleAudiobooks(q, viewer).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return books, nil
}

type UpdateOptions struct {
	Columns []string
}

// Update writes the given columns of user. Username and email are checked
// for uniqueness first.
func (s *Service) Update(ctx context.Context, user *models.User, opts UpdateOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	var username, email string
	for _, col := range opts.Columns {
		switch col {
		case "username":
			username = user.Username
		case "email":
			email = user.Email
		}
	}
	if err := auth.EnsureAvailable(ctx, s.db, user.ID, username, email); err != nil {
		return err
	}

	user.UpdatedAt = time.Now()
	opts.Columns = append(opts.Columns, "updated_at")
	_, err := s.db.NewUpdate().
		Model(user).
		Column(opts.Columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// VerifyPassword checks password against the user's stored hash. Accounts
// without a password never match.
func VerifyPassword(user *models.User, password string) bool {
	if user.PasswordHash == nil {
		return false
	}
	return auth.CheckPassword(password, *user.PasswordHash)
}
