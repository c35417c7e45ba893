package rooms

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/access"
	"github.com/taletunes/taletunes/pkg/audiobooks"
	"github.com/taletunes/taletunes/pkg/codes"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
)

var (
	errRoomNotFound     = errcodes.NotFoundWithMessage("Room not found. Please check the room code and try again.")
	errAlreadyMember    = errcodes.Conflict("You are already a member of this room.")
	errOwnerCannotLeave = errcodes.ValidationError("Room owners cannot leave their rooms.")
	errOwnerRoleFixed   = errcodes.ValidationError("The room owner's role cannot be changed.")
	errAlreadyAttached  = errcodes.Conflict("This audiobook is already in the room.")
)

type Service struct {
	db               *bun.DB
	audiobookService *audiobooks.Service
}

func NewService(db *bun.DB, audiobookService *audiobooks.Service) *Service {
	return &Service{db, audiobookService}
}

type CreateRoomOptions struct {
	Name        string
	Description *string
}

// CreateRoom inserts the room with a fresh invite code and makes owner its
// owner member.
func (svc *Service) CreateRoom(ctx context.Context, owner *models.User, opts CreateRoomOptions) (*models.Room, error) {
	now := time.Now()
	room := &models.Room{
		CreatedAt:   now,
		UpdatedAt:   now,
		Name:        opts.Name,
		Description: opts.Description,
		UserID:      owner.ID,
		IsActive:    true,
	}

	for attempt := 0; attempt < codes.MaxAttempts; attempt++ {
		err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			code, err := codes.Unique(ctx, models.RoomCodeLength, func(ctx context.Context, code string) (bool, error) {
				return tx.NewSelect().Model((*models.Room)(nil)).Where("room_code = ?", code).Exists(ctx)
			})
			if err != nil {
				return err
			}
			room.RoomCode = code

			_, err = tx.NewInsert().Model(room).Returning("*").Exec(ctx)
			if err != nil {
				return err
			}

			_, err = tx.NewInsert().Model(&models.RoomMember{
				RoomID:   room.ID,
				UserID:   owner.ID,
				Role:     models.RoomRoleOwner,
				JoinedAt: now,
			}).Exec(ctx)
			return errors.WithStack(err)
		})
		if err == nil {
			room.Owner = owner
			return room, nil
		}
		if !codes.IsUniqueViolation(err) {
			return nil, errors.WithStack(err)
		}
		room.ID = 0
	}

	return nil, errors.WithStack(codes.ErrExhausted)
}

type RetrieveRoomOptions struct {
	ID *int
	// WithMembers loads the owner and every member with their user.
	WithMembers bool
}

func (svc *Service) RetrieveRoom(ctx context.Context, opts RetrieveRoomOptions) (*models.Room, error) {
	room := &models.Room{}

	q := svc.db.
		NewSelect().
		Model(room).
		Relation("Owner")

	if opts.WithMembers {
		q = withMembers(q)
	}
	if opts.ID != nil {
		q = q.Where("r.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Room")
		}
		return nil, errors.WithStack(err)
	}

	return room, nil
}

func withMembers(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("rm.joined_at ASC", "rm.id ASC")
		}).
		Relation("Members.User")
}

// ListOwned returns the rooms the user created, newest first.
func (svc *Service) ListOwned(ctx context.Context, userID int) ([]*models.Room, error) {
	rooms := []*models.Room{}
	err := withMembers(svc.db.NewSelect().Model(&rooms).Relation("Owner")).
		Where("r.user_id = ?", userID).
		Order("r.created_at DESC", "r.id DESC").
		Scan(ctx)
	return rooms, errors.WithStack(err)
}

// ListJoined returns the rooms the user belongs to without owning them, most
// recently joined first.
func (svc *Service) ListJoined(ctx context.Context, userID int) ([]*models.Room, error) {
	rooms := []*models.Room{}
	err := withMembers(svc.db.NewSelect().Model(&rooms).Relation("Owner")).
		Join("JOIN room_members AS mine ON mine.room_id = r.id").
		Where("mine.user_id = ?", userID).
		Where("mine.role != ?", models.RoomRoleOwner).
		Order("mine.joined_at DESC", "r.id DESC").
		Scan(ctx)
	return rooms, errors.WithStack(err)
}

type UpdateRoomOptions struct {
	Columns []string
}

func (svc *Service) UpdateRoom(ctx context.Context, room *models.Room, opts UpdateRoomOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	room.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(room).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// Join adds the user to the active room with the given invite code.
func (svc *Service) Join(ctx context.Context, user *models.User, roomCode string) (*models.Room, error) {
	room := &models.Room{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(room).
			Where("r.room_code = ?", roomCode).
			Where("r.is_active = ?", true).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errRoomNotFound
			}
			return errors.WithStack(err)
		}

		member, err := access.Membership(ctx, tx, room.ID, user.ID)
		if err != nil {
			return err
		}
		if member != nil {
			return errAlreadyMember
		}

		_, err = tx.NewInsert().Model(&models.RoomMember{
			RoomID:   room.ID,
			UserID:   user.ID,
			Role:     models.RoomRoleMember,
			JoinedAt: time.Now(),
		}).Exec(ctx)
		if codes.IsUniqueViolation(err) {
			return errAlreadyMember
		}
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return room, nil
}

// Leave removes the user's membership. Owners have to delete the room
// instead.
func (svc *Service) Leave(ctx context.Context, user *models.User, roomID int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		member, err := access.Membership(ctx, tx, roomID, user.ID)
		if err != nil {
			return err
		}
		if member == nil {
			return errcodes.NotFound("Room membership")
		}
		if member.Role == models.RoomRoleOwner {
			return errOwnerCannotLeave
		}

		_, err = tx.NewDelete().Model(member).WherePK().Exec(ctx)
		return errors.WithStack(err)
	})
}

// SetMemberRole promotes a member to moderator or demotes them back.
func (svc *Service) SetMemberRole(ctx context.Context, roomID, userID int, role string) (*models.RoomMember, error) {
	var member *models.RoomMember

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		member, err = access.Membership(ctx, tx, roomID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return errcodes.NotFound("Room member")
		}
		if member.Role == models.RoomRoleOwner {
			return errOwnerRoleFixed
		}
		if member.Role == role {
			return nil
		}

		member.Role = role
		_, err = tx.NewUpdate().Model(member).Column("role").WherePK().Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return member, nil
}

// DeleteRoom removes the room along with its memberships and attachments.
// Attached audiobooks stay with their uploaders.
func (svc *Service) DeleteRoom(ctx context.Context, room *models.Room) error {
	log := logger.FromContext(ctx)

	var detached int
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.RoomAudiobook)(nil)).
			Where("room_id = ?", room.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			detached = int(n)
		}

		_, err = tx.NewDelete().
			Model((*models.RoomMember)(nil)).
			Where("room_id = ?", room.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model(room).
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	log.Info("room deleted", logger.Data{"room_id": room.ID, "detached_audiobooks": detached})
	return nil
}

// ListAudiobooks returns the audiobooks attached to the room with their
// uploaders, most recently attached first.
func (svc *Service) ListAudiobooks(ctx context.Context, roomID int) ([]*models.Audiobook, error) {
	books := []*models.Audiobook{}
	err := svc.db.NewSelect().
		Model(&books).
		Relation("User").
		Join("JOIN room_audiobooks AS ra ON ra.audiobook_id = a.id").
		Where("ra.room_id = ?", roomID).
		Order("ra.created_at DESC", "ra.id DESC").
		Scan(ctx)
	return books, errors.WithStack(err)
}

// RetrieveAudiobook returns an audiobook only when it is attached to the
// room.
func (svc *Service) RetrieveAudiobook(ctx context.Context, roomID, audiobookID int) (*models.Audiobook, error) {
	book := &models.Audiobook{}
	err := svc.db.NewSelect().
		Model(book).
		Relation("User").
		Join("JOIN room_audiobooks AS ra ON ra.audiobook_id = a.id").
		Where("ra.room_id = ?", roomID).
		Where("a.id = ?", audiobookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Audiobook")
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// AttachAudiobook shares an existing audiobook with the room.
func (svc *Service) AttachAudiobook(ctx context.Context, roomID int, book *models.Audiobook) error {
	_, err := svc.db.NewInsert().Model(&models.RoomAudiobook{
		CreatedAt:   time.Now(),
		RoomID:      roomID,
		AudiobookID: book.ID,
	}).Exec(ctx)
	if codes.IsUniqueViolation(err) {
		return errAlreadyAttached
	}
	return errors.WithStack(err)
}

type RemoveAudiobookResult struct {
	// Deleted is set when the audiobook itself was deleted because it lived
	// only in this room.
	Deleted bool
}

// RemoveAudiobook detaches the audiobook from the room. When the remover
// uploaded it, it is private, and no other room holds it, nobody else could
// reach it anymore, so it is deleted outright.
func (svc *Service) RemoveAudiobook(ctx context.Context, remover *models.User, roomID int, book *models.Audiobook) (*RemoveAudiobookResult, error) {
	var remaining int

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.RoomAudiobook)(nil)).
			Where("room_id = ?", roomID).
			Where("audiobook_id = ?", book.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errcodes.NotFound("Audiobook")
		}

		remaining, err = tx.NewSelect().
			Model((*models.RoomAudiobook)(nil)).
			Where("audiobook_id = ?", book.ID).
			Count(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	result := &RemoveAudiobookResult{}
	if book.UserID == remover.ID && !book.IsPublic && remaining == 0 {
		if err := svc.audiobookService.DeleteAudiobook(ctx, book); err != nil {
			return nil, err
		}
		result.Deleted = true
	}
	return result, nil
}
