// Package access decides who may see audiobooks and manage rooms.
//
// An audiobook is visible to a user when it is public, when the user owns it,
// or when the user belongs to a room the audiobook is attached to. Anonymous
// viewers only pass the first check.
package access

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
)

const sharedRoomSQL = `EXISTS (
	SELECT 1 FROM room_audiobooks AS vra
	JOIN room_members AS vrm ON vrm.room_id = vra.room_id
	WHERE vra.audiobook_id = a.id AND vrm.user_id = ?
)`

// CanViewAudiobook applies the visibility rule. viewer may be nil.
func CanViewAudiobook(ctx context.Context, db bun.IDB, viewer *models.User, book *models.Audiobook) (bool, error) {
	if book.IsPublic {
		return true, nil
	}
	if viewer == nil {
		return false, nil
	}
	if book.UserID == viewer.ID {
		return true, nil
	}

	exists, err := db.NewSelect().
		Model((*models.RoomAudiobook)(nil)).
		Join("JOIN room_members AS rm ON rm.room_id = ra.room_id").
		Where("ra.audiobook_id = ?", book.ID).
		Where("rm.user_id = ?", viewer.ID).
		Exists(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return exists, nil
}

// RequireView returns a 403 when viewer may not see book.
func RequireView(ctx context.Context, db bun.IDB, viewer *models.User, book *models.Audiobook) error {
	ok, err := CanViewAudiobook(ctx, db, viewer, book)
	if err != nil {
		return err
	}
	if !ok {
		return errcodes.Forbidden("Viewing this audiobook")
	}
	return nil
}

// VisibleAudiobooks restricts a select over audiobooks (aliased "a") to the
// rows viewer may see.
func VisibleAudiobooks(q *bun.SelectQuery, viewer *models.User) *bun.SelectQuery {
	if viewer == nil {
		return q.Where("a.is_public = ?", true)
	}
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("a.is_public = ?", true).
			WhereOr("a.user_id = ?", viewer.ID).
			WhereOr(sharedRoomSQL, viewer.ID)
	})
}

// Membership returns the user's membership in the room, or nil when the user
// is not a member.
func Membership(ctx context.Context, db bun.IDB, roomID, userID int) (*models.RoomMember, error) {
	member := &models.RoomMember{}
	err := db.NewSelect().
		Model(member).
		Where("rm.room_id = ?", roomID).
		Where("rm.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return member, nil
}

// MemberRole returns the user's role in the room and whether they belong to
// it at all.
func MemberRole(ctx context.Context, db bun.IDB, roomID, userID int) (string, bool, error) {
	member, err := Membership(ctx, db, roomID, userID)
	if err != nil || member == nil {
		return "", false, err
	}
	return member.Role, true, nil
}

func IsMember(ctx context.Context, db bun.IDB, roomID, userID int) (bool, error) {
	_, ok, err := MemberRole(ctx, db, roomID, userID)
	return ok, err
}

func IsOwner(ctx context.Context, db bun.IDB, roomID, userID int) (bool, error) {
	role, _, err := MemberRole(ctx, db, roomID, userID)
	return role == models.RoomRoleOwner, err
}

// CanManageRoom reports whether the user is the room's owner or a moderator.
func CanManageRoom(ctx context.Context, db bun.IDB, roomID, userID int) (bool, error) {
	member, err := Membership(ctx, db, roomID, userID)
	if err != nil || member == nil {
		return false, err
	}
	return member.CanManage(), nil
}
