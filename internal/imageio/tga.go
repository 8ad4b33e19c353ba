package imageio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
)

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaTrueColorRLE = 10

	tgaTopToBottom = 0x20

	tgaMaxSide = 16384
)

// TGA decoding errors.
var (
	ErrTGATruncated   = errors.New("TGA data truncated")
	ErrTGAUnsupported = errors.New("unsupported TGA image")
)

// tgaHeader is the fixed 18 byte TGA header.
type tgaHeader struct {
	IDLength     uint8
	ColorMapType uint8
	ImageType    uint8
	ColorMapSpec [5]byte
	OriginX      uint16
	OriginY      uint16
	Width        uint16
	Height       uint16
	Depth        uint8
	Descriptor   uint8
}

// DecodeTGA decodes an uncompressed or RLE compressed true-color TGA
// with 24 or 32 bits per pixel. 24-bit images are fully opaque.
func DecodeTGA(r io.Reader) (image.Image, error) {
	var h tgaHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header", ErrTGATruncated)
	}

	if h.ColorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped", ErrTGAUnsupported)
	}
	if h.ImageType != tgaTrueColor && h.ImageType != tgaTrueColorRLE {
		return nil, fmt.Errorf("%w: type %d", ErrTGAUnsupported, h.ImageType)
	}
	if h.Depth != 24 && h.Depth != 32 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrTGAUnsupported, h.Depth)
	}

	if _, err := io.CopyN(io.Discard, r, int64(h.IDLength)); err != nil {
		return nil, fmt.Errorf("%w: image ID", ErrTGATruncated)
	}

	width, height := int(h.Width), int(h.Height)
	if width > tgaMaxSide || height > tgaMaxSide {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels per side", ErrTGAUnsupported, width, height, tgaMaxSide)
	}
	bpp := int(h.Depth) / 8
	size := width * height * bpp

	// Pixel buffers grow with the data read, never from the header alone.
	var (
		pixels []byte
		err    error
	)
	if h.ImageType == tgaTrueColor {
		pixels, err = io.ReadAll(io.LimitReader(r, int64(size)))
		if err == nil && len(pixels) < size {
			err = io.ErrUnexpectedEOF
		}
	} else {
		pixels, err = readTGARLE(r, size, bpp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pixel data", ErrTGATruncated)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	topDown := h.Descriptor&tgaTopToBottom != 0
	for y := 0; y < height; y++ {
		row := y
		if !topDown {
			row = height - 1 - y
		}
		for x := 0; x < width; x++ {
			src := pixels[(y*width+x)*bpp:]
			dst := img.Pix[img.PixOffset(x, row):]
			dst[0], dst[1], dst[2] = src[2], src[1], src[0]
			dst[3] = 0xff
			if bpp == 4 {
				dst[3] = src[3]
			}
		}
	}
	return img, nil
}

// readTGARLE expands RLE packets until size bytes are decoded.
func readTGARLE(r io.Reader, size, bpp int) ([]byte, error) {
	var head [1]byte
	px := make([]byte, bpp)
	out := make([]byte, 0, min(size, 1<<16))

	for len(out) < size {
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return nil, err
		}
		count := int(head[0]&0x7f) + 1
		if len(out)+count*bpp > size {
			return nil, ErrTGATruncated
		}

		if head[0]&0x80 != 0 {
			if _, err := io.ReadFull(r, px); err != nil {
				return nil, err
			}
			for i := 0; i < count; i++ {
				out = append(out, px...)
			}
			continue
		}

		for i := 0; i < count; i++ {
			if _, err := io.ReadFull(r, px); err != nil {
				return nil, err
			}
			out = append(out, px...)
		}
	}
	return out, nil
}
