// Package packer assigns rectangles to fixed-size bins without overlap.
//
// Placement uses maximal free rectangles with the bottom-left rule.
// Rectangles are fed largest shorter side first, and each one goes to
// the open bin with the least free area that can still take it. Rectangles
// are never rotated.
package packer

import (
	"errors"
	"fmt"
	"image"
	"sort"
)

// Packer errors.
var (
	ErrInvalidBinSize = errors.New("bin size must be positive")
	ErrInvalidRect    = errors.New("rectangle size must be positive")
)

// maxGrowths bounds the number of bin doublings in single-bin mode.
const maxGrowths = 32

// Mode selects how bins are allocated.
type Mode int

const (
	// SingleBin packs everything into one bin, doubling its shorter side
	// and repacking until every rectangle fits.
	SingleBin Mode = iota
	// MultiBin opens as many bins of the configured size as needed.
	MultiBin
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case SingleBin:
		return "single"
	case MultiBin:
		return "multi"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Rect is an input rectangle. Tag is carried through untouched.
type Rect struct {
	W, H int
	Tag  any
}

// Placement is a rectangle assigned to a bin position.
type Placement struct {
	Rect Rect
	X, Y int
	// Rotated is always false: the packer does not rotate.
	Rotated bool
}

// Bounds returns the area covered by the placement.
func (p Placement) Bounds() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Rect.W, p.Y+p.Rect.H)
}

// Bin is one packing page.
type Bin struct {
	Index      int
	Width      int
	Height     int
	Placements []Placement
}

// Options configures Pack.
type Options struct {
	Width  int
	Height int
	Mode   Mode
}

// Result is the outcome of a successful Pack.
type Result struct {
	Bins []*Bin
	// Width and Height are the bin size used, after any growth.
	Width  int
	Height int
	// Growths counts bin doublings in single-bin mode.
	Growths int
}

// Placed returns the number of placed rectangles over all bins.
func (r *Result) Placed() int {
	n := 0
	for _, b := range r.Bins {
		n += len(b.Placements)
	}
	return n
}

// InsufficientPackingError reports rectangles left unplaced.
type InsufficientPackingError struct {
	Unplaced int
	Total    int
}

func (e *InsufficientPackingError) Error() string {
	if e.Unplaced == 1 {
		return fmt.Sprintf("insufficient packing: 1 of %d sprites was not packed (bin size is too small?)", e.Total)
	}
	return fmt.Sprintf("insufficient packing: %d of %d sprites were not packed (bin size is too small?)", e.Unplaced, e.Total)
}

// Pack places every rectangle. It fails when any rectangle is left over.
func Pack(rects []Rect, opts Options) (*Result, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidBinSize, opts.Width, opts.Height)
	}
	for i, r := range rects {
		if r.W <= 0 || r.H <= 0 {
			return nil, fmt.Errorf("%w: rect %d is %dx%d", ErrInvalidRect, i, r.W, r.H)
		}
	}

	sorted := sortRects(rects)

	var res *Result
	switch opts.Mode {
	case MultiBin:
		bins, _ := packBins(sorted, opts.Width, opts.Height, 0)
		res = &Result{Bins: bins, Width: opts.Width, Height: opts.Height}
	case SingleBin:
		res = packSingle(sorted, opts.Width, opts.Height)
	default:
		return nil, fmt.Errorf("unknown packing mode %v", opts.Mode)
	}

	if placed := res.Placed(); placed != len(rects) {
		return nil, &InsufficientPackingError{Unplaced: len(rects) - placed, Total: len(rects)}
	}
	return res, nil
}

// packSingle repacks the full set into one bin, growing the bin until
// everything fits. The height doubles when it is the shorter side,
// otherwise the width does.
func packSingle(rects []Rect, width, height int) *Result {
	res := &Result{}
	for {
		bins, ok := packBins(rects, width, height, 1)
		res.Bins, res.Width, res.Height = bins, width, height
		if ok || res.Growths >= maxGrowths {
			return res
		}
		if height < width {
			height *= 2
		} else {
			width *= 2
		}
		res.Growths++
	}
}

// packBins places rects into bins of the given size, opening at most
// limit bins (0 means unlimited). It reports whether all rects were placed.
func packBins(rects []Rect, width, height, limit int) ([]*Bin, bool) {
	var (
		bins   []*Bin
		spaces []*maxRects
	)
	all := true

	for _, r := range rects {
		best := -1
		var bestPos image.Point
		for i, s := range spaces {
			pos, ok := s.find(r.W, r.H)
			if !ok {
				continue
			}
			if best < 0 || s.freeArea() < spaces[best].freeArea() {
				best, bestPos = i, pos
			}
		}

		if best < 0 {
			if r.W > width || r.H > height || (limit > 0 && len(bins) >= limit) {
				all = false
				continue
			}
			bins = append(bins, &Bin{Index: len(bins), Width: width, Height: height})
			spaces = append(spaces, newMaxRects(width, height))
			best, bestPos = len(bins)-1, image.Point{}
		}

		p := Placement{Rect: r, X: bestPos.X, Y: bestPos.Y}
		spaces[best].place(p.Bounds())
		bins[best].Placements = append(bins[best].Placements, p)
	}

	return bins, all
}

// sortRects orders rectangles by shorter side, then longer side, both
// descending. Equal rectangles keep their input order.
func sortRects(rects []Rect) []Rect {
	out := make([]Rect, len(rects))
	copy(out, rects)
	sort.SliceStable(out, func(i, j int) bool {
		si, li := sides(out[i])
		sj, lj := sides(out[j])
		if si != sj {
			return si > sj
		}
		return li > lj
	})
	return out
}

func sides(r Rect) (short, long int) {
	if r.W < r.H {
		return r.W, r.H
	}
	return r.H, r.W
}
