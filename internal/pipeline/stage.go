// Package pipeline runs a whole atlas generation: collect, pack, compose,
// stage, post-process and publish.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stage is a private scratch directory for one run. Nothing written into
// it is visible in the destination until Publish.
type Stage struct {
	root string
}

// NewStage creates a fresh staging directory under the OS temp dir.
func NewStage(atlasName string) (*Stage, error) {
	root, err := os.MkdirTemp("", "atlas-"+sanitize(atlasName)+"-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	s := &Stage{root: root}
	for _, dir := range []string{s.Out(), s.Templates()} {
		if err := os.Mkdir(dir, 0755); err != nil {
			os.RemoveAll(root)
			return nil, fmt.Errorf("creating staging directory: %w", err)
		}
	}
	return s, nil
}

// Path returns the staging root.
func (s *Stage) Path() string {
	return s.root
}

// Out is the staged image of the destination directory.
func (s *Stage) Out() string {
	return filepath.Join(s.root, "out")
}

// Templates is the staged image of the overrides directory.
func (s *Stage) Templates() string {
	return filepath.Join(s.root, "overrides")
}

// Close removes the staging directory. It is safe to call more than once.
func (s *Stage) Close() error {
	if s.root == "" {
		return nil
	}
	err := os.RemoveAll(s.root)
	s.root = ""
	return err
}

// sanitize keeps a name usable as a temp dir prefix.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
