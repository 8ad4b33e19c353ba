// Package config handles atlas generator configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/Faultbox/atlaspack/internal/imageio"
	"github.com/Faultbox/atlaspack/internal/postprocess"
)

// Validation errors.
var (
	ErrMissingPath   = errors.New("missing directory")
	ErrInvalidSize   = errors.New("invalid bin size")
	ErrInvalidBorder = errors.New("invalid border width")
	ErrInvalidFormat = errors.New("invalid output format")
	ErrInvalidJobs   = errors.New("invalid job count")
)

// Config holds all generator settings.
type Config struct {
	Paths   PathsConfig       `yaml:"paths"`
	Atlas   AtlasConfig       `yaml:"atlas"`
	Output  OutputConfig      `yaml:"output"`
	Tools   postprocess.Tools `yaml:"tools"`
	Logging LoggingConfig     `yaml:"logging"`
}

// PathsConfig holds the input and output directories.
type PathsConfig struct {
	Overrides string `yaml:"overrides"`
	Source    string `yaml:"source"`
	Dest      string `yaml:"dest"`
}

// AtlasConfig holds packing settings.
type AtlasConfig struct {
	Name   string `yaml:"name"` // Defaults to the source directory name
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Border int    `yaml:"border"`
	Crop   bool   `yaml:"crop"`
	Single bool   `yaml:"single"`
}

// OutputConfig holds settings for the published pages.
type OutputConfig struct {
	Format       imageio.Format `yaml:"format"`
	Optimize     bool           `yaml:"optimize"`
	Jobs         int            `yaml:"jobs"`
	SourcePrefix string         `yaml:"source_prefix"` // Prepended to "source =" in texture definitions
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the generator defaults.
func Default() *Config {
	return &Config{
		Atlas: AtlasConfig{
			Width:  2048,
			Height: 2048,
			Border: 1,
			Crop:   true,
			Single: true,
		},
		Output: OutputConfig{
			Format:       imageio.OutputFormats[0],
			Optimize:     true,
			Jobs:         runtime.NumCPU(),
			SourcePrefix: "res/gfx/",
		},
		Tools: postprocess.DefaultTools(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// AtlasName returns the configured atlas name, or the base name of the
// source directory when none is set.
func (c *Config) AtlasName() string {
	if c.Atlas.Name != "" {
		return c.Atlas.Name
	}
	return filepath.Base(filepath.Clean(c.Paths.Source))
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	switch {
	case c.Paths.Overrides == "":
		return fmt.Errorf("%w: overrides", ErrMissingPath)
	case c.Paths.Source == "":
		return fmt.Errorf("%w: source", ErrMissingPath)
	case c.Paths.Dest == "":
		return fmt.Errorf("%w: dest", ErrMissingPath)
	}
	if c.Atlas.Width <= 0 || c.Atlas.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.Atlas.Width, c.Atlas.Height)
	}
	if c.Atlas.Border < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBorder, c.Atlas.Border)
	}
	if !c.Output.Format.IsOutput() {
		return fmt.Errorf("%w: %q (want one of %v)", ErrInvalidFormat, c.Output.Format, imageio.OutputFormats)
	}
	if c.Output.Jobs <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Output.Jobs)
	}
	return nil
}
