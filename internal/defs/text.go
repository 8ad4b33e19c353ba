// Package defs renders texture and sprite definition files and the inert
// override templates for sprites nobody has tuned yet.
package defs

import (
	"fmt"
	"image"
	"strings"

	"github.com/Faultbox/atlaspack/internal/atlas"
	"github.com/Faultbox/atlaspack/internal/imageio"
	"github.com/Faultbox/atlaspack/internal/override"
)

// Header starts every generated definition file.
const Header = "# Autogenerated by the atlas packer, do not modify\n\n"

// File extensions of generated definitions.
const (
	SpriteExt  = ".spr"
	TextureExt = ".tex"
)

func pasted(b *strings.Builder, title string, text *string) {
	if text == nil {
		return
	}
	fmt.Fprintf(b, "\n# -- Pasted from the %s --\n\n%s\n", title, strings.TrimSpace(*text))
}

// SpriteDefinition renders the definition of one placed sprite. Pass-through
// parameters follow the region; the sprite's override text, when present,
// is appended last.
func SpriteDefinition(def atlas.Definition, overrideText *string) string {
	var b strings.Builder
	b.WriteString(Header)
	fmt.Fprintf(&b, "texture = %s\n", def.Texture)
	fmt.Fprintf(&b, "region_x = %d\n", def.Region.Min.X)
	fmt.Fprintf(&b, "region_y = %d\n", def.Region.Min.Y)
	fmt.Fprintf(&b, "region_w = %d\n", def.Region.Dx())
	fmt.Fprintf(&b, "region_h = %d\n", def.Region.Dy())
	writeParams(&b, def.Params)
	pasted(&b, "override file", overrideText)
	return b.String()
}

func writeParams(b *strings.Builder, params override.Values) {
	for _, k := range params.Keys() {
		v, _ := params.Get(k)
		fmt.Fprintf(b, "%s = %s\n", k, v)
	}
}

// TextureDefinition renders the definition of one atlas page. Global
// overrides come before source-local ones.
func TextureDefinition(textureID, sourcePrefix string, format imageio.Format, global, local *string) string {
	var b strings.Builder
	b.WriteString(Header)
	fmt.Fprintf(&b, "source = %s%s%s\n", sourcePrefix, textureID, format.Ext())
	pasted(&b, "global override file", global)
	pasted(&b, "local override file", local)
	return b.String()
}

// OverrideTemplate renders the inert template for a sprite of the given
// unbordered size.
func OverrideTemplate(size image.Point) string {
	var b strings.Builder
	b.WriteString("# This file was generated automatically, because this sprite doesn't have a custom override file.\n")
	fmt.Fprintf(&b, "# To override this sprite's parameters, edit this file, remove the %s suffix and this comment, then commit it to the repository.\n\n", override.TemplateSuffix)
	b.WriteString("# Modify these to change the virtual size of the sprite\n")
	fmt.Fprintf(&b, "w = %d\n", size.X)
	fmt.Fprintf(&b, "h = %d\n", size.Y)
	return b.String()
}
