package pipeline

import (
	"bufio"
	"context"
	"errors"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/atlaspack/internal/config"
	"github.com/Faultbox/atlaspack/internal/imageio"
	"github.com/Faultbox/atlaspack/internal/override"
	"github.com/Faultbox/atlaspack/internal/postprocess"
	"github.com/Faultbox/atlaspack/pkg/packer"
)

// fakeProcessor records calls instead of spawning tools.
type fakeProcessor struct {
	mu        sync.Mutex
	converted []string
	optimized []string

	failOptimize string // base name whose Optimize fails
	unsupported  bool
}

func (f *fakeProcessor) Convert(_ context.Context, src string, to imageio.Format) (string, error) {
	if f.unsupported {
		return "", &postprocess.UnsupportedConversionError{From: imageio.PNG, To: to}
	}
	dst := strings.TrimSuffix(src, filepath.Ext(src)) + to.Ext()
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.converted = append(f.converted, filepath.Base(src))
	f.mu.Unlock()
	return dst, nil
}

func (f *fakeProcessor) Optimize(_ context.Context, path string) error {
	if filepath.Base(path) == f.failOptimize {
		return &postprocess.ToolError{Tool: "leanify", Args: []string{"-v", path}, ExitCode: 1}
	}
	f.mu.Lock()
	f.optimized = append(f.optimized, filepath.Base(path))
	f.mu.Unlock()
	return nil
}

func writeSprite(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), uint8(w + h), 255})
		}
	}
	require.NoError(t, imageio.WritePNG(path, img))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newProject returns a config for an atlas named name with an empty
// source tree, overrides tree and destination.
func newProject(t *testing.T, name string) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		Overrides: filepath.Join(root, "overrides"),
		Source:    filepath.Join(root, "gfx", name),
		Dest:      filepath.Join(root, "out"),
	}
	cfg.Output.Optimize = false
	cfg.Output.Jobs = 2
	require.NoError(t, os.MkdirAll(cfg.Paths.Source, 0755))
	return cfg
}

// listFiles returns every regular file below root keyed by slash path.
func listFiles(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) && p == root {
			return filepath.SkipDir
		}
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		data, err := os.ReadFile(p)
		files[filepath.ToSlash(rel)] = data
		return err
	})
	require.NoError(t, err)
	return files
}

// region parses the region fields of a sprite definition.
func region(t *testing.T, def []byte) image.Rectangle {
	t.Helper()
	v := make(map[string]int)
	sc := bufio.NewScanner(strings.NewReader(string(def)))
	for sc.Scan() {
		k, val, ok := strings.Cut(sc.Text(), " = ")
		if !ok || !strings.HasPrefix(k, "region_") {
			continue
		}
		n, err := strconv.Atoi(val)
		require.NoError(t, err)
		v[k] = n
	}
	require.Len(t, v, 4)
	return image.Rect(v["region_x"], v["region_y"], v["region_x"]+v["region_w"], v["region_y"]+v["region_h"])
}

func TestGenerate(t *testing.T) {
	cfg := newProject(t, "ui")
	cfg.Output.Optimize = true
	src := cfg.Paths.Source
	ov := cfg.Paths.Overrides

	writeSprite(t, filepath.Join(src, "a.png"), 10, 10)
	writeSprite(t, filepath.Join(src, "sub", "b.png"), 20, 5)
	writeSprite(t, filepath.Join(src, "anim", "walk.frame0000.png"), 8, 8)
	writeSprite(t, filepath.Join(src, "anim", "walk.frame0001.png"), 8, 8)
	writeFile(t, filepath.Join(src, "readme.txt"), "not a sprite")
	writeFile(t, filepath.Join(src, override.TextureFile), "mipmaps = 0\n")
	writeFile(t, filepath.Join(ov, override.TextureFile), "filter = nearest\n")
	writeFile(t, filepath.Join(ov, "a.spr"), "scale = 2\n")
	writeFile(t, filepath.Join(ov, "a.spr.conf"), "border = 3\npivot = center # comment\n")

	proc := &fakeProcessor{}
	report, err := Generate(context.Background(), cfg, proc, nil)
	require.NoError(t, err)

	assert.Equal(t, "ui", report.Atlas)
	assert.Equal(t, 4, report.Sprites)
	assert.Equal(t, []string{"atlas_ui_0"}, report.Pages)
	assert.Equal(t, 2, report.Templates)
	assert.Equal(t, []string{"atlas_ui_0.png"}, proc.optimized)
	assert.Empty(t, proc.converted)

	out := listFiles(t, cfg.Paths.Dest)
	for _, name := range []string{
		"atlas_ui_0.png",
		"atlas_ui_0.tex",
		"a.spr",
		"sub/b.spr",
		"anim/walk.frame0000.spr",
		"anim/walk.frame0001.spr",
	} {
		assert.Contains(t, out, name)
	}
	assert.Len(t, out, 6)

	tex := string(out["atlas_ui_0.tex"])
	assert.Contains(t, tex, "source = res/gfx/atlas_ui_0.png\n")
	assert.Contains(t, tex, "filter = nearest")
	assert.Contains(t, tex, "mipmaps = 0")
	assert.Less(t, strings.Index(tex, "filter"), strings.Index(tex, "mipmaps"))

	a := string(out["a.spr"])
	assert.Contains(t, a, "texture = atlas_ui_0\n")
	assert.Contains(t, a, "region_w = 10\nregion_h = 10\npivot = center\n")
	assert.Contains(t, a, "scale = 2")

	// Every region lies within the page and sprites do not overlap.
	page, err := imageio.DecodeFile(filepath.Join(cfg.Paths.Dest, "atlas_ui_0.png"))
	require.NoError(t, err)
	var regions []image.Rectangle
	for name, data := range out {
		if !strings.HasSuffix(name, ".spr") {
			continue
		}
		r := region(t, data)
		assert.True(t, r.In(page.Bounds()), "%s region %v outside page %v", name, r, page.Bounds())
		for _, other := range regions {
			assert.False(t, r.Overlaps(other), "%s overlaps %v", name, other)
		}
		regions = append(regions, r)
	}
	assert.Len(t, regions, report.Sprites)

	templates := listFiles(t, ov)
	assert.Contains(t, templates, "sub/b.spr.renameme")
	assert.Contains(t, templates, "anim/walk.framegroup.spr.renameme")
	assert.NotContains(t, templates, "a.spr.renameme")
	assert.Contains(t, string(templates["sub/b.spr.renameme"]), "w = 20\nh = 5\n")
}

func TestGenerateIdempotent(t *testing.T) {
	cfg := newProject(t, "icons")
	writeSprite(t, filepath.Join(cfg.Paths.Source, "x.png"), 16, 16)
	writeSprite(t, filepath.Join(cfg.Paths.Source, "y.png"), 7, 30)

	first, err := Generate(context.Background(), cfg, &fakeProcessor{}, nil)
	require.NoError(t, err)
	before := listFiles(t, cfg.Paths.Dest)

	second, err := Generate(context.Background(), cfg, &fakeProcessor{}, nil)
	require.NoError(t, err)
	after := listFiles(t, cfg.Paths.Dest)

	assert.Equal(t, before, after)
	assert.Equal(t, 0, second.Publish.Written)
	assert.Equal(t, 0, second.Publish.Removed)
	assert.Equal(t, first.Publish.Written, second.Publish.Unchanged)
}

func TestGenerateCrop(t *testing.T) {
	for _, crop := range []bool{true, false} {
		t.Run(strconv.FormatBool(crop), func(t *testing.T) {
			cfg := newProject(t, "crop")
			cfg.Atlas.Width, cfg.Atlas.Height = 256, 256
			cfg.Atlas.Crop = crop
			writeSprite(t, filepath.Join(cfg.Paths.Source, "one.png"), 10, 10)
			writeSprite(t, filepath.Join(cfg.Paths.Source, "two.png"), 20, 4)

			_, err := Generate(context.Background(), cfg, &fakeProcessor{}, nil)
			require.NoError(t, err)

			page, err := imageio.DecodeFile(filepath.Join(cfg.Paths.Dest, "atlas_crop_0.png"))
			require.NoError(t, err)
			want := image.Pt(256, 256)
			if crop {
				// 12x12 at the origin, 22x6 to its right.
				want = image.Pt(34, 12)
			}
			assert.Equal(t, want, page.Bounds().Size())
		})
	}
}

func TestGenerateSingleBinGrowth(t *testing.T) {
	cfg := newProject(t, "grow")
	cfg.Atlas.Width, cfg.Atlas.Height = 128, 128
	for _, n := range []string{"a", "b", "c", "d"} {
		writeSprite(t, filepath.Join(cfg.Paths.Source, n+".png"), 100, 100)
	}

	report, err := Generate(context.Background(), cfg, &fakeProcessor{}, nil)
	require.NoError(t, err)
	assert.Len(t, report.Pages, 1)
	assert.Equal(t, 256, report.Width)
	assert.Equal(t, 256, report.Height)
	assert.Equal(t, 2, report.Growths)
}

func TestGenerateMalformedOverride(t *testing.T) {
	cfg := newProject(t, "bad")
	writeSprite(t, filepath.Join(cfg.Paths.Source, "a.png"), 4, 4)
	writeFile(t, filepath.Join(cfg.Paths.Overrides, "a.spr.conf"), "border = 1\nbad line no equals\n")

	proc := &fakeProcessor{}
	_, err := Generate(context.Background(), cfg, proc, nil)
	require.Error(t, err)

	var syntaxErr *override.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 2, syntaxErr.Line)
	assert.Contains(t, err.Error(), "collect:")
	assert.Empty(t, listFiles(t, cfg.Paths.Dest))
	assert.Empty(t, proc.optimized)
}

func TestGenerateInsufficientPacking(t *testing.T) {
	cfg := newProject(t, "small")
	cfg.Atlas.Single = false
	cfg.Atlas.Width, cfg.Atlas.Height = 16, 16
	writeSprite(t, filepath.Join(cfg.Paths.Source, "big.png"), 20, 20)
	writeSprite(t, filepath.Join(cfg.Paths.Source, "tiny.png"), 2, 2)

	_, err := Generate(context.Background(), cfg, &fakeProcessor{}, nil)
	var packErr *packer.InsufficientPackingError
	require.ErrorAs(t, err, &packErr)
	assert.Equal(t, 1, packErr.Unplaced)
	assert.Empty(t, listFiles(t, cfg.Paths.Dest))
}

func TestGenerateAtomicFailure(t *testing.T) {
	cfg := newProject(t, "atomic")
	cfg.Atlas.Single = false
	cfg.Atlas.Width, cfg.Atlas.Height = 32, 32
	cfg.Output.Optimize = true
	for _, n := range []string{"a", "b", "c"} {
		writeSprite(t, filepath.Join(cfg.Paths.Source, n+".png"), 20, 20)
	}
	writeFile(t, filepath.Join(cfg.Paths.Dest, "atlas_other_0.png"), "other atlas")
	writeFile(t, filepath.Join(cfg.Paths.Dest, "atlas_atomic_7.png"), "old page")
	before := listFiles(t, cfg.Paths.Dest)

	_, err := Generate(context.Background(), cfg, &fakeProcessor{failOptimize: "atlas_atomic_1.png"}, nil)
	require.Error(t, err)

	var toolErr *postprocess.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.Contains(t, err.Error(), "postprocess:")

	assert.Equal(t, before, listFiles(t, cfg.Paths.Dest))
	assert.Empty(t, listFiles(t, cfg.Paths.Overrides))

	leftovers, err := filepath.Glob(filepath.Join(os.TempDir(), "atlas-atomic-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestGenerateUnsupportedConversion(t *testing.T) {
	cfg := newProject(t, "conv")
	cfg.Output.Format = imageio.WebP
	writeSprite(t, filepath.Join(cfg.Paths.Source, "a.png"), 4, 4)

	_, err := Generate(context.Background(), cfg, &fakeProcessor{unsupported: true}, nil)
	var convErr *postprocess.UnsupportedConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, imageio.WebP, convErr.To)
	assert.Empty(t, listFiles(t, cfg.Paths.Dest))
}

func TestGenerateWebP(t *testing.T) {
	cfg := newProject(t, "web")
	cfg.Output.Format = imageio.WebP
	cfg.Output.Optimize = true
	writeSprite(t, filepath.Join(cfg.Paths.Source, "a.png"), 4, 4)

	proc := &fakeProcessor{}
	_, err := Generate(context.Background(), cfg, proc, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"atlas_web_0.png"}, proc.converted)
	assert.Equal(t, []string{"atlas_web_0.webp"}, proc.optimized)

	out := listFiles(t, cfg.Paths.Dest)
	assert.Contains(t, out, "atlas_web_0.webp")
	assert.NotContains(t, out, "atlas_web_0.png")
	assert.Contains(t, string(out["atlas_web_0.tex"]), "source = res/gfx/atlas_web_0.webp\n")
}

func TestGenerateRemovesStalePages(t *testing.T) {
	cfg := newProject(t, "ui")
	writeSprite(t, filepath.Join(cfg.Paths.Source, "a.png"), 4, 4)
	dest := cfg.Paths.Dest
	writeFile(t, filepath.Join(dest, "atlas_ui_5.webp"), "stale")
	writeFile(t, filepath.Join(dest, "atlas_ui_0.png"), "previous")
	writeFile(t, filepath.Join(dest, "atlas_uix_0.png"), "other atlas")
	writeFile(t, filepath.Join(dest, "atlas_ui_1.tex"), "definition")
	writeFile(t, filepath.Join(dest, "notes.txt"), "unrelated")

	report, err := Generate(context.Background(), cfg, &fakeProcessor{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Publish.Removed)

	out := listFiles(t, dest)
	assert.NotContains(t, out, "atlas_ui_5.webp")
	assert.NotEqual(t, "previous", string(out["atlas_ui_0.png"]))
	assert.Equal(t, "other atlas", string(out["atlas_uix_0.png"]))
	assert.Equal(t, "definition", string(out["atlas_ui_1.tex"]))
	assert.Equal(t, "unrelated", string(out["notes.txt"]))
}

func TestGenerateInvalidConfig(t *testing.T) {
	cfg := newProject(t, "cfg")
	cfg.Atlas.Border = -2
	_, err := Generate(context.Background(), cfg, &fakeProcessor{}, nil)
	require.ErrorIs(t, err, config.ErrInvalidBorder)
}
