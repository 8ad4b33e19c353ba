package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/Faultbox/atlaspack/internal/imageio"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage error")

// Flags holds command-line settings. Only flags the user actually passed
// override the loaded configuration.
type Flags struct {
	set *pflag.FlagSet

	ConfigPath string
	DumpConfig bool
	SavePath   string
	Debug      bool
	LogFile    string

	width, height int
	name          string
	border        int
	format        string
	jobs          int
	args          []string
}

// NewFlags registers the generator flags on a new flag set.
func NewFlags(program string) *Flags {
	f := &Flags{set: pflag.NewFlagSet(program, pflag.ContinueOnError)}
	fs := f.set
	d := Default()

	fs.StringVar(&f.ConfigPath, "config", "", "path to config file (default: ./"+FileName+")")
	fs.BoolVar(&f.DumpConfig, "dump-config", false, "print the effective configuration as YAML and exit")
	fs.StringVar(&f.SavePath, "save-config", "", "write the effective configuration to this file and exit")
	fs.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "also write logs to this rotating file")

	fs.IntVarP(&f.width, "width", "W", d.Atlas.Width, "base width of a single atlas bin")
	fs.IntVarP(&f.height, "height", "H", d.Atlas.Height, "base height of a single atlas bin")
	fs.StringVarP(&f.name, "name", "n", "", "unique atlas name used to form texture names (default: source directory name)")
	fs.IntVarP(&f.border, "border", "b", d.Atlas.Border, "protective border `WIDTH` around each sprite")
	fs.BoolP("crop", "c", false, "remove unused space from bins (default)")
	fs.BoolP("no-crop", "C", false, "do not remove unused space from atlases")
	fs.BoolP("single", "s", false, "pack everything into a single texture, growing it as needed (default)")
	fs.BoolP("multiple", "m", false, "split the atlas across multiple textures if the sprites won't fit otherwise")
	fs.BoolP("leanify", "l", false, "optimize atlases to save space; very slow (default)")
	fs.BoolP("no-leanify", "L", false, "do not optimize atlases")
	fs.StringVarP(&f.format, "format", "f", string(d.Output.Format), fmt.Sprintf("format of the atlas textures %v", imageio.OutputFormats))
	fs.IntVarP(&f.jobs, "jobs", "j", d.Output.Jobs, "number of pages post-processed in parallel")

	fs.SortFlags = false
	return f
}

// FlagSet returns the underlying flag set, for usage output.
func (f *Flags) FlagSet() *pflag.FlagSet {
	return f.set
}

// Parse parses args. Positional arguments are
// "<overrides_dir> <source_dir> <dest_dir>"; they may be omitted when a
// config file supplies the paths.
func (f *Flags) Parse(args []string) error {
	if err := f.set.Parse(args); err != nil {
		return err
	}
	f.args = f.set.Args()
	if n := len(f.args); n != 0 && n != 3 {
		return fmt.Errorf("%w: expected 3 directories, got %d", ErrUsage, n)
	}
	return nil
}

func (f *Flags) changed(name string) bool {
	return f.set.Changed(name)
}

// apply copies explicitly set flags into cfg.
func (f *Flags) apply(cfg *Config) {
	if len(f.args) == 3 {
		cfg.Paths.Overrides = f.args[0]
		cfg.Paths.Source = f.args[1]
		cfg.Paths.Dest = f.args[2]
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.changed("width") {
		cfg.Atlas.Width = f.width
	}
	if f.changed("height") {
		cfg.Atlas.Height = f.height
	}
	if f.changed("name") {
		cfg.Atlas.Name = f.name
	}
	if f.changed("border") {
		cfg.Atlas.Border = f.border
	}
	if f.changed("crop") {
		cfg.Atlas.Crop = true
	}
	if f.changed("no-crop") {
		cfg.Atlas.Crop = false
	}
	if f.changed("single") {
		cfg.Atlas.Single = true
	}
	if f.changed("multiple") {
		cfg.Atlas.Single = false
	}
	if f.changed("leanify") {
		cfg.Output.Optimize = true
	}
	if f.changed("no-leanify") {
		cfg.Output.Optimize = false
	}
	if f.changed("format") {
		cfg.Output.Format = imageio.Format(f.format)
	}
	if f.changed("jobs") {
		cfg.Output.Jobs = f.jobs
	}
}
