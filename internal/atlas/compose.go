// Package atlas rasterizes packed bins into atlas pages.
package atlas

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/atlaspack/internal/collect"
	"github.com/Faultbox/atlaspack/internal/override"
	"github.com/Faultbox/atlaspack/pkg/packer"
)

// TextureID returns the texture name of page index of an atlas.
func TextureID(atlasName string, index int) string {
	return fmt.Sprintf("atlas_%s_%d", atlasName, index)
}

// Definition describes where one sprite ended up.
type Definition struct {
	Sprite  string
	Texture string
	// Region is the sprite interior in page pixels, border excluded.
	Region image.Rectangle
	// Size is the source image size.
	Size image.Point
	// Rotated is set when the source was turned 90 degrees to fit Region.
	Rotated bool
	Params  override.Values
}

// Page is one composed atlas image.
type Page struct {
	ID      string
	Index   int
	Image   *image.NRGBA
	Sprites []Definition
}

// Area returns the pixel area of the page.
func (p *Page) Area() int {
	b := p.Image.Bounds()
	return b.Dx() * b.Dy()
}

// Extent returns the page size for bin: the bounding box of its placements
// measured from the origin when crop is set, the bin size otherwise.
func Extent(bin *packer.Bin, crop bool) image.Point {
	if !crop {
		return image.Pt(bin.Width, bin.Height)
	}
	var size image.Point
	for _, p := range bin.Placements {
		r := p.Bounds()
		size.X = max(size.X, r.Max.X)
		size.Y = max(size.Y, r.Max.Y)
	}
	return size
}

// Compose draws every sprite placed in bin onto a transparent page.
// Placement tags must be *collect.Sprite.
func Compose(bin *packer.Bin, atlasName string, crop bool, log *zap.Logger) (*Page, error) {
	if log == nil {
		log = zap.NewNop()
	}

	size := Extent(bin, crop)
	page := &Page{
		ID:      TextureID(atlasName, bin.Index),
		Index:   bin.Index,
		Image:   image.NewNRGBA(image.Rectangle{Max: size}),
		Sprites: make([]Definition, 0, len(bin.Placements)),
	}

	for _, p := range bin.Placements {
		s, ok := p.Rect.Tag.(*collect.Sprite)
		if !ok {
			return nil, fmt.Errorf("bin %d: placement tag is %T, not a sprite", bin.Index, p.Rect.Tag)
		}

		region := p.Bounds().Inset(s.Border)
		src := s.Image
		srcSize := src.Bounds().Size()
		rotated := false

		if srcSize != region.Size() {
			if srcSize != (image.Point{X: region.Dy(), Y: region.Dx()}) {
				return nil, fmt.Errorf("sprite %s: %v does not fit region %v", s.Name, srcSize, region)
			}
			src = rotate90(src)
			rotated = true
		}

		draw.Copy(page.Image, region.Min, src, src.Bounds(), draw.Src, nil)

		log.Debug("sprite placed",
			zap.String("sprite", s.Name),
			zap.String("texture", page.ID),
			zap.Stringer("region", region),
			zap.Bool("rotated", rotated))

		page.Sprites = append(page.Sprites, Definition{
			Sprite:  s.Name,
			Texture: page.ID,
			Region:  region,
			Size:    srcSize,
			Rotated: rotated,
			Params:  s.Config.Extra,
		})
	}

	log.Info("atlas page composed",
		zap.String("texture", page.ID),
		zap.Int("sprites", len(page.Sprites)),
		zap.Int("width", size.X),
		zap.Int("height", size.Y),
		zap.Int("area", page.Area()))

	return page, nil
}

// rotate90 returns src turned 90 degrees counter-clockwise.
func rotate90(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y-b.Min.Y, b.Max.X-1-x, src.At(x, y))
		}
	}
	return dst
}
