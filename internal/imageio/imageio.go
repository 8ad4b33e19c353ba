// Package imageio decodes sprite sources and encodes atlas pages.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// Format is an image file format, named by its file extension.
type Format string

// Supported formats.
const (
	PNG  Format = "png"
	WebP Format = "webp"
	TGA  Format = "tga"
	BMP  Format = "bmp"
)

// Working is the format atlas pages are first written in.
const Working = PNG

// OutputFormats lists the formats an atlas page can be published in.
// The first entry is the default.
var OutputFormats = []Format{PNG, WebP}

// SourceFormats lists the formats accepted as sprite sources.
var SourceFormats = []Format{PNG, WebP, TGA, BMP}

// ErrUnknownFormat is returned for file extensions outside SourceFormats.
var ErrUnknownFormat = errors.New("unknown image format")

// ParseFormat maps a name or extension (with or without the dot, any
// case) to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	for _, known := range SourceFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// IsOutput reports whether f is one of OutputFormats.
func (f Format) IsOutput() bool {
	for _, o := range OutputFormats {
		if f == o {
			return true
		}
	}
	return false
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// FormatOf returns the source format of path based on its extension.
func FormatOf(path string) (Format, bool) {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return "", false
	}
	return f, true
}

// Decode reads an image in format f.
func Decode(r io.Reader, f Format) (image.Image, error) {
	switch f {
	case PNG:
		return png.Decode(r)
	case WebP:
		return webp.Decode(r)
	case BMP:
		return bmp.Decode(r)
	case TGA:
		return DecodeTGA(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// DecodeFile opens and decodes the image at path, choosing the decoder
// from the file extension.
func DecodeFile(path string) (image.Image, error) {
	f, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := Decode(bufio.NewReader(file), f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// WritePNG encodes img as PNG at path, creating parent directories.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	w := bufio.NewWriter(file)
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(w, img); err != nil {
		file.Close()
		return fmt.Errorf("encoding PNG: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
