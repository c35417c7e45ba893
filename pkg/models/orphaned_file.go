package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Reasons a stored file was orphaned.
const (
	OrphanReasonAudiobookDeleted = "audiobook_deleted"
	OrphanReasonUploadAborted    = "upload_aborted"
)

// OrphanedFile is a storage key whose owning row is gone but whose file could
// not be removed yet.
type OrphanedFile struct {
	bun.BaseModel `bun:"table:orphaned_files,alias:o"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	StorageKey  string     `bun:",nullzero" json:"storage_key"`
	Reason      string     `bun:",nullzero" json:"reason"`
	Attempts    int        `json:"attempts"`
	LastError   *string    `json:"last_error"`
	LastTriedAt *time.Time `json:"last_tried_at"`
}
