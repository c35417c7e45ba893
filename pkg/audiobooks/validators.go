package audiobooks

import (
	"mime/multipart"

	"github.com/taletunes/taletunes/pkg/uploads"
)

// Multipart field names of the uploaded files.
const (
	FieldCoverImage = "cover_image"
	FieldAudioFile  = "audio_file"
)

// UploadPayload is the multipart form of a new audiobook. Cover images may be
// sent as repeated cover_image or cover_image[] parts.
type UploadPayload struct {
	Title         string  `form:"title" json:"title" validate:"required,max=255" mod:"trim"`
	Author        string  `form:"author" json:"author" validate:"required,max=255" mod:"trim"`
	Description   *string `form:"description" json:"description" validate:"omitempty,max=2000" mod:"trim"`
	Duration      *string `form:"duration" json:"duration" validate:"omitempty,max=50" mod:"trim"`
	Category      string  `form:"category" json:"category" validate:"required,category" mod:"trim"`
	IsPublic      bool    `form:"is_public" json:"is_public"`
	GeneratedCode *string `form:"generated_code" json:"generated_code" validate:"omitempty,len=8,code" mod:"trim,ucase"`

	FormFiles map[string][]*multipart.FileHeader `form:"-" json:"-"`
}

// CreateOptions validates the attached files and turns the payload into
// service options.
func (p *UploadPayload) CreateOptions() (CreateAudiobookOptions, error) {
	opts := CreateAudiobookOptions{}

	covers, err := uploads.ValidateCovers(p.FormFiles[FieldCoverImage])
	if err != nil {
		return opts, err
	}
	audio, err := uploads.ValidateAudio(p.FormFiles[FieldAudioFile])
	if err != nil {
		return opts, err
	}

	opts = CreateAudiobookOptions{
		Title:         p.Title,
		Author:        p.Author,
		Description:   nilIfEmpty(p.Description),
		Duration:      nilIfEmpty(p.Duration),
		Category:      p.Category,
		IsPublic:      p.IsPublic,
		GeneratedCode: nilIfEmpty(p.GeneratedCode),
		Covers:        covers,
		Audio:         audio,
	}
	return opts, nil
}

type UpdateAudiobookPayload struct {
	Title       *string `json:"title" validate:"omitempty,max=255" mod:"trim"`
	Author      *string `json:"author" validate:"omitempty,max=255" mod:"trim"`
	Description *string `json:"description" validate:"omitempty,max=2000" mod:"trim"`
	Category    *string `json:"category" validate:"omitempty,category" mod:"trim"`
	IsPublic    *bool   `json:"is_public"`
}

type SearchByCodeQuery struct {
	Code string `query:"code" json:"code" validate:"required,max=16" mod:"trim,ucase"`
}

// CoverQuery asks for a resized cover. Zero dimensions keep the aspect ratio;
// both zero returns the original file.
type CoverQuery struct {
	Width  int `query:"width" json:"width" validate:"min=0,max=1200"`
	Height int `query:"height" json:"height" validate:"min=0,max=1200"`
}

func nilIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
