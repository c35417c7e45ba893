package testgen

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// JPEG returns a solid color JPEG of the given size.
func JPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(width, height), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

// PNG returns a solid color PNG of the given size.
func PNG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(width, height)); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// MP3 returns a tiny MP3 stream: an empty ID3v2 tag followed by a few silent
// MPEG-1 Layer III frames. It is enough for content sniffing.
func MP3() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	// 128kbps, 44.1kHz, no padding: 417 byte frames.
	frame := make([]byte, 417)
	frame[0], frame[1], frame[2], frame[3] = 0xFF, 0xFB, 0x90, 0x64
	for i := 0; i < 4; i++ {
		buf.Write(frame)
	}
	return buf.Bytes()
}

func solidImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	blue := color.RGBA{0, 100, 200, 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, blue)
		}
	}
	return img
}
