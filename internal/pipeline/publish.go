package pipeline

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/Faultbox/atlaspack/internal/imageio"
)

// PublishResult counts what Publish did.
type PublishResult struct {
	Removed   int
	Written   int
	Unchanged int
}

// PagePattern matches the page image files of atlasName in any output
// format, e.g. "atlas_ui_0.png".
func PagePattern(atlasName string) *regexp.Regexp {
	exts := make([]string, len(imageio.OutputFormats))
	for i, f := range imageio.OutputFormats {
		exts[i] = regexp.QuoteMeta(string(f))
	}
	return regexp.MustCompile(`^atlas_` + regexp.QuoteMeta(atlasName) + `_\d+\.(` + strings.Join(exts, "|") + `)$`)
}

// Publish moves a fully staged run into place. Page images of atlasName
// left in dest by earlier runs are deleted first, unless the stage holds
// a file of the same name. Then the staged output tree is copied into
// dest and the staged templates into overridesDir. Files whose content is
// already identical are left alone.
func Publish(stage *Stage, dest, overridesDir, atlasName string, log *zap.Logger) (PublishResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var res PublishResult

	removed, err := removeStalePages(stage.Out(), dest, PagePattern(atlasName), log)
	res.Removed = removed
	if err != nil {
		return res, err
	}

	for _, tree := range []struct{ from, to string }{
		{stage.Out(), dest},
		{stage.Templates(), overridesDir},
	} {
		if err := copyTree(tree.from, tree.to, &res, log); err != nil {
			return res, err
		}
	}
	return res, nil
}

func removeStalePages(staged, dest string, pattern *regexp.Regexp, log *zap.Logger) (int, error) {
	entries, err := os.ReadDir(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", dest, err)
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !pattern.MatchString(e.Name()) {
			continue
		}
		if _, err := os.Stat(filepath.Join(staged, e.Name())); err == nil {
			continue
		}
		p := filepath.Join(dest, e.Name())
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("removing %s: %w", p, err)
		}
		log.Info("removed stale page", zap.String("path", p))
		removed++
	}
	return removed, nil
}

func copyTree(from, to string, res *PublishResult, log *zap.Logger) error {
	return filepath.WalkDir(from, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(to, rel)

		sum, _, err := digest(p)
		if err != nil {
			return err
		}
		old, exists, err := digest(dst)
		if err != nil {
			return err
		}
		if exists && old == sum {
			log.Debug("unchanged", zap.String("path", dst))
			res.Unchanged++
			return nil
		}

		if err := copyFile(p, dst); err != nil {
			return err
		}
		log.Debug("written", zap.String("path", dst), zap.String("blake3", hex.EncodeToString(sum[:])))
		res.Written++
		return nil
	})
}

// digest streams the file at path through BLAKE3. ok is false when the
// file does not exist.
func digest(path string) (sum [32]byte, ok bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return sum, false, nil
	}
	if err != nil {
		return sum, false, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, false, fmt.Errorf("hashing %s: %w", path, err)
	}
	copy(sum[:], h.Sum(nil))
	return sum, true, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return out.Close()
}
