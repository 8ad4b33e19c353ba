package override

import (
	"path/filepath"
	"regexp"
	"strings"
)

// File name suffixes inside the overrides directory.
const (
	SpriteSuffix   = ".spr"
	ConfigSuffix   = ".conf"
	TemplateSuffix = ".renameme"

	// TextureFile holds texture-level overrides, found at the overrides
	// root and optionally at the source root.
	TextureFile = "atlas.tex"

	frameGroupSuffix = ".framegroup"
)

var reFrame = regexp.MustCompile(`\.frame\d{4}$`)

// Key returns the override key for a sprite name. Animation frames named
// "<base>.frameNNNN" share the key "<base>.framegroup".
func Key(sprite string) string {
	if loc := reFrame.FindStringIndex(sprite); loc != nil {
		return sprite[:loc[0]] + frameGroupSuffix
	}
	return sprite
}

// IsFrameGroup reports whether key names a frame group.
func IsFrameGroup(key string) bool {
	return strings.HasSuffix(key, frameGroupSuffix)
}

// Paths locates the override files for sprites below one overrides root.
type Paths struct {
	Root string
}

// Text returns the path of the hand-authored override text for sprite.
func (p Paths) Text(sprite string) string {
	return filepath.Join(p.Root, filepath.FromSlash(Key(sprite)+SpriteSuffix))
}

// Config returns the path of the packer configuration for sprite.
func (p Paths) Config(sprite string) string {
	return p.Text(sprite) + ConfigSuffix
}

// Template returns the path relative to Root of the inert template written
// for a sprite without override text, using forward slashes.
func (p Paths) Template(sprite string) string {
	return Key(sprite) + SpriteSuffix + TemplateSuffix
}

// Texture returns the path of the texture-level override file.
func (p Paths) Texture() string {
	return filepath.Join(p.Root, TextureFile)
}
