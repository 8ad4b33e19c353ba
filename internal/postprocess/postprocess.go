// Package postprocess converts and optimizes finished atlas pages.
//
// The pipeline only sees the Processor interface. Exec implements it by
// running external tools; tests use in-memory fakes.
package postprocess

import (
	"context"
	"fmt"
	"strings"

	"github.com/Faultbox/atlaspack/internal/imageio"
)

// Processor converts and optimizes image files in place on disk.
type Processor interface {
	// Convert rewrites the image at src in format to and returns the new
	// path. src is removed on success.
	Convert(ctx context.Context, src string, to imageio.Format) (string, error)
	// Optimize shrinks the file at path without changing its pixels.
	Optimize(ctx context.Context, path string) error
}

// ToolError reports an external tool that failed.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	cmd := strings.Join(append([]string{e.Tool}, e.Args...), " ")
	if e.Err != nil {
		return fmt.Sprintf("external tool failed: %s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("external tool failed: %s: exit status %d", cmd, e.ExitCode)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// UnsupportedConversionError reports a format pair with no conversion.
type UnsupportedConversionError struct {
	From imageio.Format
	To   imageio.Format
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("unsupported conversion %s -> %s", e.From, e.To)
}
