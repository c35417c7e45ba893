package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Room member roles.
const (
	RoomRoleOwner     = "owner"
	RoomRoleModerator = "moderator"
	RoomRoleMember    = "member"
)

// Length of room invite codes.
const RoomCodeLength = 6

type Room struct {
	bun.BaseModel `bun:"table:rooms,alias:r"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `bun:",nullzero" json:"name"`
	Description *string   `json:"description"`
	RoomCode    string    `bun:",nullzero" json:"room_code"`
	UserID      int       `bun:",nullzero" json:"user_id"`
	Owner       *User     `bun:"rel:belongs-to,join:user_id=id" json:"owner,omitempty"`
	IsActive    bool      `json:"is_active"`

	// Relations
	Members    []*RoomMember `bun:"rel:has-many,join:id=room_id" json:"members,omitempty"`
	Audiobooks []*Audiobook  `bun:"m2m:room_audiobooks,join:Room=Audiobook" json:"audiobooks,omitempty"`
}

type RoomMember struct {
	bun.BaseModel `bun:"table:room_members,alias:rm"`

	ID       int       `bun:",pk,nullzero" json:"id"`
	RoomID   int       `bun:",nullzero" json:"room_id"`
	Room     *Room     `bun:"rel:belongs-to,join:room_id=id" json:"room,omitempty"`
	UserID   int       `bun:",nullzero" json:"user_id"`
	User     *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Role     string    `bun:",nullzero" json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// CanManage reports whether the member may edit the room and curate its
// audiobooks.
func (m *RoomMember) CanManage() bool {
	return m.Role == RoomRoleOwner || m.Role == RoomRoleModerator
}

type RoomAudiobook struct {
	bun.BaseModel `bun:"table:room_audiobooks,alias:ra"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	RoomID      int        `bun:",nullzero" json:"room_id"`
	Room        *Room      `bun:"rel:belongs-to,join:room_id=id" json:"room,omitempty"`
	AudiobookID int        `bun:",nullzero" json:"audiobook_id"`
	Audiobook   *Audiobook `bun:"rel:belongs-to,join:audiobook_id=id" json:"audiobook,omitempty"`
}
