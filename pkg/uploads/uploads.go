// Package uploads validates the files attached to an audiobook upload.
package uploads

import (
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/errcodes"
)

const (
	MaxFileSize    = 50 << 20
	MaxCoverImages = 10
)

// File is an accepted upload along with what its content was detected as.
type File struct {
	Header      *multipart.FileHeader
	ContentType string
	Ext         string
}

type kind struct {
	label      string
	extensions []string
	mimeTypes  []string
}

var (
	coverKind = kind{
		label:      "cover image",
		extensions: []string{"jpeg", "jpg", "png"},
		mimeTypes:  []string{"image/jpeg", "image/png"},
	}
	audioKind = kind{
		label:      "audio file",
		extensions: []string{"mp3"},
		mimeTypes:  []string{"audio/mpeg"},
	}
)

// ValidateCovers checks that there are between 1 and MaxCoverImages JPEG or
// PNG images, none larger than MaxFileSize.
func ValidateCovers(headers []*multipart.FileHeader) ([]*File, error) {
	if len(headers) == 0 {
		return nil, errcodes.ValidationError("Please select at least one cover image.")
	}
	if len(headers) > MaxCoverImages {
		return nil, errcodes.ValidationError("You can upload maximum 10 images.")
	}
	files := make([]*File, 0, len(headers))
	for _, h := range headers {
		f, err := coverKind.check(h)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// ValidateAudio checks for a single MP3 no larger than MaxFileSize.
func ValidateAudio(headers []*multipart.FileHeader) (*File, error) {
	if len(headers) == 0 {
		return nil, errcodes.ValidationError("The audio file field is required.")
	}
	if len(headers) > 1 {
		return nil, errcodes.ValidationError("Only one audio file may be uploaded.")
	}
	return audioKind.check(headers[0])
}

func (k kind) check(h *multipart.FileHeader) (*File, error) {
	if h.Size > MaxFileSize {
		return nil, errcodes.ValidationError("The " + k.label + " may not be greater than 50MB.")
	}

	typeErr := errcodes.ValidationError("The " + k.label + " must be a file of type: " + strings.Join(k.extensions, ", ") + ".")

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(h.Filename), "."))
	if !contains(k.extensions, ext) {
		return nil, typeErr
	}

	f, err := h.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, allowed := range k.mimeTypes {
		if mtype.Is(allowed) {
			return &File{
				Header:      h,
				ContentType: allowed,
				Ext:         strings.TrimPrefix(mtype.Extension(), "."),
			}, nil
		}
	}
	return nil, typeErr
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
