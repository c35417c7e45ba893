// Package covers renders resized cover images.
package covers

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder
	"io"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	MaxDimension = 1200
	jpegQuality  = 80
)

// ErrNoDimensions is returned when neither width nor height was requested.
var ErrNoDimensions = errors.New("thumbnail needs a width or a height")

// Thumbnail decodes a JPEG or PNG image and scales it to fit inside width x
// height, keeping its aspect ratio. A zero dimension is derived from the
// other one. Requested dimensions are clamped to 1..MaxDimension and images
// are never scaled up. The result is always a JPEG.
func Thumbnail(r io.Reader, width, height int) ([]byte, error) {
	if width <= 0 && height <= 0 {
		return nil, ErrNoDimensions
	}

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	srcBounds := src.Bounds()
	targetW, targetH := FitDimensions(srcBounds.Dx(), srcBounds.Dy(), clamp(width), clamp(height))

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, srcBounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrap(err, "encode thumbnail")
	}
	return buf.Bytes(), nil
}

// FitDimensions returns the largest size with the source's aspect ratio that
// fits inside maxW x maxH. A zero bound is unconstrained.
func FitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	if maxW == 0 {
		maxW = srcW
	}
	if maxH == 0 {
		maxH = srcH
	}
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}

	ratio := float64(maxW) / float64(srcW)
	if ratioH := float64(maxH) / float64(srcH); ratioH < ratio {
		ratio = ratioH
	}

	w := int(float64(srcW) * ratio)
	h := int(float64(srcH) * ratio)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func clamp(v int) int {
	switch {
	case v <= 0:
		return 0
	case v > MaxDimension:
		return MaxDimension
	default:
		return v
	}
}
