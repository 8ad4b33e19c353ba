package defs

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/atlaspack/internal/atlas"
	"github.com/Faultbox/atlaspack/internal/imageio"
	"github.com/Faultbox/atlaspack/internal/override"
)

// Publisher writes the text outputs of an atlas into a staging tree.
// Definitions go below OutDir; templates go below TemplateDir, which
// mirrors the overrides directory.
type Publisher struct {
	Overrides    override.Paths
	OutDir       string
	TemplateDir  string
	SourcePrefix string
	Format       imageio.Format

	global    *string
	local     *string
	templates map[string]bool
	log       *zap.Logger
}

// PublisherOptions configures NewPublisher.
type PublisherOptions struct {
	Overrides    override.Paths
	SourceDir    string
	OutDir       string
	TemplateDir  string
	SourcePrefix string
	Format       imageio.Format
}

// NewPublisher loads the texture-level override files from the overrides
// root and the source root.
func NewPublisher(opts PublisherOptions, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Publisher{
		Overrides:    opts.Overrides,
		OutDir:       opts.OutDir,
		TemplateDir:  opts.TemplateDir,
		SourcePrefix: opts.SourcePrefix,
		Format:       opts.Format,
		templates:    make(map[string]bool),
		log:          log,
	}

	var err error
	if p.global, err = readOptional(opts.Overrides.Texture()); err != nil {
		return nil, err
	}
	if p.local, err = readOptional(filepath.Join(opts.SourceDir, override.TextureFile)); err != nil {
		return nil, err
	}
	return p, nil
}

func readOptional(path string) (*string, error) {
	text, ok, err := override.ReadText(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !ok {
		return nil, nil
	}
	return &text, nil
}

// WritePage writes the texture definition of page and the definition of
// every sprite on it. Sprites without override text get a template,
// once per override key.
func (p *Publisher) WritePage(page *atlas.Page) error {
	texPath := filepath.Join(p.OutDir, page.ID+TextureExt)
	if err := writeText(texPath, TextureDefinition(page.ID, p.SourcePrefix, p.Format, p.global, p.local)); err != nil {
		return err
	}

	for _, def := range page.Sprites {
		text, err := readOptional(p.Overrides.Text(def.Sprite))
		if err != nil {
			return err
		}

		if text == nil {
			if err := p.writeTemplate(def); err != nil {
				return err
			}
		}

		sprPath := filepath.Join(p.OutDir, filepath.FromSlash(def.Sprite)+SpriteExt)
		if err := writeText(sprPath, SpriteDefinition(def, text)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) writeTemplate(def atlas.Definition) error {
	rel := p.Overrides.Template(def.Sprite)
	if p.templates[rel] {
		return nil
	}
	p.templates[rel] = true

	p.log.Debug("override template staged",
		zap.String("sprite", def.Sprite),
		zap.String("template", rel),
		zap.Bool("frame_group", override.IsFrameGroup(override.Key(def.Sprite))))
	return writeText(filepath.Join(p.TemplateDir, filepath.FromSlash(rel)), OverrideTemplate(def.Size))
}

// Templates returns the number of templates written so far.
func (p *Publisher) Templates() int {
	return len(p.templates)
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
