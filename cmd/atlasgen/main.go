// atlasgen packs a directory of sprites into texture atlases.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/atlaspack/internal/config"
	"github.com/Faultbox/atlaspack/internal/logger"
	"github.com/Faultbox/atlaspack/internal/pipeline"
	"github.com/Faultbox/atlaspack/internal/postprocess"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := config.NewFlags("atlasgen")
	flags.FlagSet().Usage = func() { printUsage(flags.FlagSet()) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printUsage(flags.FlagSet())
		return 2
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	if flags.DumpConfig {
		if err := cfg.Write(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if flags.SavePath != "" {
		if err := cfg.SaveTo(flags.SavePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Configuration written to %s\n", flags.SavePath)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingPath) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			printUsage(flags.FlagSet())
			return 2
		}
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.LogFile, zapcore.Lock(os.Stderr))
	defer logger.Sync()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.Generate(ctx, cfg, postprocess.NewExec(cfg.Tools, log), log)
	if err != nil {
		log.Error("atlas generation failed", zap.Error(err))
		return 1
	}

	fmt.Printf("%s: %d sprites on %d page(s), %d written, %d unchanged, %d removed\n",
		report.Atlas, report.Sprites, len(report.Pages),
		report.Publish.Written, report.Publish.Unchanged, report.Publish.Removed)
	return 0
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `atlasgen - sprite atlas packer

Usage:
  atlasgen [options] <overrides_dir> <source_dir> <dest_dir>
  atlasgen [options]                 (directories from %s)

Options:
%s
Examples:
  atlasgen atlas/overrides atlas/common res/gfx
  atlasgen -m -W 1024 -H 1024 -f webp atlas/overrides atlas/ui res/gfx
  atlasgen --dump-config > %s
`, config.FileName, fs.FlagUsages(), config.FileName)
}
