package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Audiobook categories.
const (
	CategoryFantasy           = "Fantasy"
	CategoryRomance           = "Romance"
	CategoryMotivation        = "Motivation"
	CategoryHorror            = "Horror"
	CategoryNonFiction        = "Non-Fiction"
	CategoryMemoir            = "Memoir"
	CategoryScienceFiction    = "Science Fiction"
	CategoryMystery           = "Mystery"
	CategoryHistoricalFiction = "Historical Fiction"
)

// Categories lists every category in display order.
var Categories = []string{
	CategoryFantasy,
	CategoryRomance,
	CategoryMotivation,
	CategoryHorror,
	CategoryNonFiction,
	CategoryMemoir,
	CategoryScienceFiction,
	CategoryMystery,
	CategoryHistoricalFiction,
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Storage prefixes for uploaded audiobook files.
const (
	StoragePrefixCovers = "audiobooks/covers"
	StoragePrefixAudio  = "audiobooks/audio"
)

// Length of server-generated audiobook share codes.
const GeneratedCodeLength = 8

type Audiobook struct {
	bun.BaseModel `bun:"table:audiobooks,alias:a"`

	ID            int       `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	UserID        int       `bun:",nullzero" json:"user_id"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Title         string    `bun:",nullzero" json:"title"`
	Author        string    `bun:",nullzero" json:"author"`
	Description   *string   `json:"description"`
	Duration      *string   `json:"duration"`
	CoverImages   CoverKeys `bun:",notnull" json:"cover_images"`
	AudioFile     string    `bun:",nullzero" json:"audio_file"`
	Category      string    `bun:",nullzero" json:"category"`
	IsPublic      bool      `json:"is_public"`
	GeneratedCode *string   `json:"generated_code"`

	// Relations
	Comments    []*Comment `bun:"rel:has-many,join:id=audiobook_id" json:"comments,omitempty"`
	FavoritedBy []*User    `bun:"m2m:favorites,join:Audiobook=User" json:"favorited_by,omitempty"`
	Rooms       []*Room    `bun:"m2m:room_audiobooks,join:Audiobook=Room" json:"rooms,omitempty"`

	// Filled in per response
	CoverURLs   []string `bun:"-" json:"cover_urls,omitempty"`
	AudioURL    string   `bun:"-" json:"audio_url,omitempty"`
	IsFavorited bool     `bun:"-" json:"is_favorited"`
}

// StorageKeys returns every stored file that belongs to the audiobook.
func (a *Audiobook) StorageKeys() []string {
	keys := make([]string, 0, len(a.CoverImages)+1)
	keys = append(keys, a.CoverImages...)
	if a.AudioFile != "" {
		keys = append(keys, a.AudioFile)
	}
	return keys
}

// ResolveURLs fills CoverURLs and AudioURL using urlFor to map storage keys.
func (a *Audiobook) ResolveURLs(urlFor func(key string) string) {
	a.CoverURLs = make([]string, 0, len(a.CoverImages))
	for _, key := range a.CoverImages {
		a.CoverURLs = append(a.CoverURLs, urlFor(key))
	}
	if a.AudioFile != "" {
		a.AudioURL = urlFor(a.AudioFile)
	}
}
