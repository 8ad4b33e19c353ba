// Package collect scans a source tree for sprite images.
package collect

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/Faultbox/atlaspack/internal/imageio"
	"github.com/Faultbox/atlaspack/internal/override"
	"github.com/Faultbox/atlaspack/pkg/packer"
)

// ErrDuplicateSprite is returned when two source files map to the same
// sprite name, e.g. "a.png" and "a.webp".
var ErrDuplicateSprite = errors.New("duplicate sprite name")

// Sprite is one source image with its resolved packing configuration.
type Sprite struct {
	// Name is the path relative to the source root without extension,
	// always with forward slashes and in Unicode NFC.
	Name   string
	Path   string
	Image  image.Image
	Width  int
	Height int
	// Border is max(default border, override border).
	Border int
	Config override.Config
}

// Rect returns the padded packing rectangle for the sprite.
func (s *Sprite) Rect() packer.Rect {
	return packer.Rect{
		W:   s.Width + 2*s.Border,
		H:   s.Height + 2*s.Border,
		Tag: s,
	}
}

// Options configures Collect.
type Options struct {
	SourceDir string
	Overrides override.Paths
	// Border is the global default border width.
	Border int
}

// Collect walks opts.SourceDir recursively in lexical order and loads
// every file with a supported image extension.
func Collect(opts Options, log *zap.Logger) ([]*Sprite, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var sprites []*Sprite
	seen := make(map[string]string)

	err := filepath.WalkDir(opts.SourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, ok := imageio.FormatOf(p); !ok {
			return nil
		}
		if ok, err := isFile(p, d); !ok || err != nil {
			return err
		}

		rel, err := filepath.Rel(opts.SourceDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		name := norm.NFC.String(strings.TrimSuffix(rel, path.Ext(rel)))

		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w %q: %s and %s", ErrDuplicateSprite, name, prev, rel)
		}
		seen[name] = rel

		s, err := load(p, name, opts)
		if err != nil {
			return err
		}
		log.Debug("sprite collected",
			zap.String("name", name),
			zap.Int("width", s.Width),
			zap.Int("height", s.Height),
			zap.Int("border", s.Border))
		sprites = append(sprites, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("sprites collected", zap.String("source", opts.SourceDir), zap.Int("count", len(sprites)))
	return sprites, nil
}

// isFile reports whether the entry is a regular file, following symlinks.
func isFile(p string, d fs.DirEntry) (bool, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular(), nil
	}
	info, err := os.Stat(p)
	if err != nil {
		return false, fmt.Errorf("sprite %s: %w", p, err)
	}
	return info.Mode().IsRegular(), nil
}

func load(p, name string, opts Options) (*Sprite, error) {
	cfg, err := override.Load(opts.Overrides.Config(name))
	if err != nil {
		return nil, fmt.Errorf("sprite %s: %w", name, err)
	}

	img, err := imageio.DecodeFile(p)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()

	return &Sprite{
		Name:   name,
		Path:   p,
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		Border: cfg.ResolveBorder(opts.Border),
		Config: cfg,
	}, nil
}
