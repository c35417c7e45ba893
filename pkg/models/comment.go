package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UserID      int        `bun:",nullzero" json:"user_id"`
	User        *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	AudiobookID int        `bun:",nullzero" json:"audiobook_id"`
	Audiobook   *Audiobook `bun:"rel:belongs-to,join:audiobook_id=id" json:"audiobook,omitempty"`
	Content     string     `bun:",nullzero" json:"content"`
}
