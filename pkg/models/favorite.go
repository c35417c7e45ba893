package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Favorite struct {
	bun.BaseModel `bun:"table:favorites,alias:f"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UserID      int        `bun:",nullzero" json:"user_id"`
	User        *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	AudiobookID int        `bun:",nullzero" json:"audiobook_id"`
	Audiobook   *Audiobook `bun:"rel:belongs-to,join:audiobook_id=id" json:"audiobook,omitempty"`
}
