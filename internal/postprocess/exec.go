package postprocess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/atlaspack/internal/imageio"
)

// Tools names the external commands used by Exec.
type Tools struct {
	CWebP   string `yaml:"cwebp"`
	Leanify string `yaml:"leanify"`
}

// DefaultTools resolves the tools through PATH.
func DefaultTools() Tools {
	return Tools{
		CWebP:   "cwebp",
		Leanify: "leanify",
	}
}

type conversion struct {
	from, to imageio.Format
}

// Exec runs external tools.
type Exec struct {
	tools Tools
	log   *zap.Logger
}

// NewExec returns a Processor backed by the given tools.
func NewExec(tools Tools, log *zap.Logger) *Exec {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exec{tools: tools, log: log}
}

// command returns the tool invocation for a conversion, or false when no
// conversion is defined.
func (e *Exec) command(c conversion, src, dst string) (string, []string, bool) {
	switch c {
	case conversion{imageio.PNG, imageio.WebP}:
		return e.tools.CWebP, []string{
			"-progress",
			"-preset", "drawing",
			"-z", "9",
			"-lossless",
			"-q", "100",
			src,
			"-o", dst,
		}, true
	}
	return "", nil, false
}

// Convert implements Processor.
func (e *Exec) Convert(ctx context.Context, src string, to imageio.Format) (string, error) {
	from, ok := imageio.FormatOf(src)
	if !ok {
		return "", fmt.Errorf("%s: %w", src, imageio.ErrUnknownFormat)
	}
	if from == to {
		return src, nil
	}

	dst := strings.TrimSuffix(src, from.Ext()) + to.Ext()
	tool, args, ok := e.command(conversion{from, to}, src, dst)
	if !ok {
		return "", &UnsupportedConversionError{From: from, To: to}
	}

	if err := e.run(ctx, tool, args...); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("removing %s: %w", src, err)
	}
	return dst, nil
}

// Optimize implements Processor.
func (e *Exec) Optimize(ctx context.Context, path string) error {
	return e.run(ctx, e.tools.Leanify, "-v", path)
}

func (e *Exec) run(ctx context.Context, tool string, args ...string) error {
	e.log.Debug("running tool", zap.String("tool", tool), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, tool, args...)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		e.log.Debug("tool output", zap.String("tool", tool), zap.ByteString("output", out))
	}
	if err == nil {
		return nil
	}

	toolErr := &ToolError{Tool: tool, Args: args, ExitCode: -1, Output: string(out)}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	} else {
		toolErr.Err = err
	}
	return toolErr
}
