package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/atlaspack/internal/atlas"
	"github.com/Faultbox/atlaspack/internal/collect"
	"github.com/Faultbox/atlaspack/internal/config"
	"github.com/Faultbox/atlaspack/internal/defs"
	"github.com/Faultbox/atlaspack/internal/imageio"
	"github.com/Faultbox/atlaspack/internal/override"
	"github.com/Faultbox/atlaspack/internal/postprocess"
	"github.com/Faultbox/atlaspack/pkg/packer"
)

// Report summarizes a successful run.
type Report struct {
	Atlas   string
	Sprites int
	// Pages holds the texture IDs in page order.
	Pages []string
	// Width and Height are the final bin size.
	Width     int
	Height    int
	Growths   int
	Templates int
	Publish   PublishResult
}

// Generate builds the atlas described by cfg and publishes it. Either the
// whole run lands in the destination or nothing does.
func Generate(ctx context.Context, cfg *config.Config, proc postprocess.Processor, log *zap.Logger) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	name := cfg.AtlasName()
	log = log.With(zap.String("atlas", name))
	overrides := override.Paths{Root: cfg.Paths.Overrides}

	sprites, err := collect.Collect(collect.Options{
		SourceDir: cfg.Paths.Source,
		Overrides: overrides,
		Border:    cfg.Atlas.Border,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if len(sprites) == 0 {
		log.Warn("no sprites found", zap.String("source", cfg.Paths.Source))
	}

	rects := make([]packer.Rect, len(sprites))
	for i, s := range sprites {
		rects[i] = s.Rect()
	}
	mode := packer.MultiBin
	if cfg.Atlas.Single {
		mode = packer.SingleBin
	}
	packed, err := packer.Pack(rects, packer.Options{
		Width:  cfg.Atlas.Width,
		Height: cfg.Atlas.Height,
		Mode:   mode,
	})
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	log.Info("sprites packed",
		zap.Stringer("mode", mode),
		zap.Int("bins", len(packed.Bins)),
		zap.Int("width", packed.Width),
		zap.Int("height", packed.Height),
		zap.Int("growths", packed.Growths))

	stage, err := NewStage(name)
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}
	defer func() {
		if err := stage.Close(); err != nil {
			log.Warn("removing staging directory", zap.Error(err))
		}
	}()
	log.Debug("staging", zap.String("dir", stage.Path()))

	pub, err := defs.NewPublisher(defs.PublisherOptions{
		Overrides:    overrides,
		SourceDir:    cfg.Paths.Source,
		OutDir:       stage.Out(),
		TemplateDir:  stage.Templates(),
		SourcePrefix: cfg.Output.SourcePrefix,
		Format:       cfg.Output.Format,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}

	report := &Report{
		Atlas:   name,
		Sprites: len(sprites),
		Width:   packed.Width,
		Height:  packed.Height,
		Growths: packed.Growths,
	}

	var (
		tasks   []Task
		defined int
	)
	for _, bin := range packed.Bins {
		page, err := atlas.Compose(bin, name, cfg.Atlas.Crop, log)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}

		imgPath := filepath.Join(stage.Out(), page.ID+imageio.Working.Ext())
		if err := imageio.WritePNG(imgPath, page.Image); err != nil {
			return nil, fmt.Errorf("stage: %w", err)
		}
		if err := pub.WritePage(page); err != nil {
			return nil, fmt.Errorf("stage: %w", err)
		}

		defined += len(page.Sprites)
		report.Pages = append(report.Pages, page.ID)
		tasks = append(tasks, postprocessTask(proc, imgPath, cfg.Output.Format, cfg.Output.Optimize, log))
	}
	if defined != len(sprites) {
		return nil, fmt.Errorf("compose: %d sprites collected but %d defined", len(sprites), defined)
	}
	report.Templates = pub.Templates()

	if err := RunTasks(ctx, cfg.Output.Jobs, tasks); err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	report.Publish, err = Publish(stage, cfg.Paths.Dest, cfg.Paths.Overrides, name, log)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	log.Info("atlas published",
		zap.String("dest", cfg.Paths.Dest),
		zap.Strings("pages", report.Pages),
		zap.Int("sprites", report.Sprites),
		zap.Int("templates", report.Templates),
		zap.Int("written", report.Publish.Written),
		zap.Int("unchanged", report.Publish.Unchanged),
		zap.Int("removed", report.Publish.Removed))

	return report, nil
}

// postprocessTask converts the staged page at path to format and then
// optimizes it if requested.
func postprocessTask(proc postprocess.Processor, path string, format imageio.Format, optimize bool, log *zap.Logger) Task {
	return func(ctx context.Context) error {
		out := path
		if format != imageio.Working {
			var err error
			if out, err = proc.Convert(ctx, path, format); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
		}
		if optimize {
			if err := proc.Optimize(ctx, out); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(out), err)
			}
		}
		log.Debug("page processed", zap.String("path", out))
		return nil
	}
}
