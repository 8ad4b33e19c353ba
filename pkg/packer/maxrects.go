package packer

import "image"

// maxRects tracks the free space of one bin as a set of maximal free
// rectangles. Free rectangles may overlap each other; none of them
// overlaps a placed rectangle.
type maxRects struct {
	bounds image.Rectangle
	free   []image.Rectangle
	used   int
}

func newMaxRects(width, height int) *maxRects {
	b := image.Rect(0, 0, width, height)
	return &maxRects{
		bounds: b,
		free:   []image.Rectangle{b},
	}
}

// freeArea returns the bin area not covered by placed rectangles.
func (m *maxRects) freeArea() int {
	return m.bounds.Dx()*m.bounds.Dy() - m.used
}

// find returns the bottom-left position for a w*h rectangle: the free
// position whose bottom edge is lowest, then leftmost.
func (m *maxRects) find(w, h int) (image.Point, bool) {
	best := image.Point{}
	bestTop, bestX := -1, -1
	found := false

	for _, f := range m.free {
		if f.Dx() < w || f.Dy() < h {
			continue
		}
		top := f.Min.Y + h
		if !found || top < bestTop || (top == bestTop && f.Min.X < bestX) {
			best = f.Min
			bestTop, bestX = top, f.Min.X
			found = true
		}
	}
	return best, found
}

// place marks r as used and recomputes the free rectangle set.
func (m *maxRects) place(r image.Rectangle) {
	next := make([]image.Rectangle, 0, len(m.free)+4)
	for _, f := range m.free {
		if !f.Overlaps(r) {
			next = append(next, f)
			continue
		}
		if r.Min.X > f.Min.X {
			next = append(next, image.Rect(f.Min.X, f.Min.Y, r.Min.X, f.Max.Y))
		}
		if r.Max.X < f.Max.X {
			next = append(next, image.Rect(r.Max.X, f.Min.Y, f.Max.X, f.Max.Y))
		}
		if r.Min.Y > f.Min.Y {
			next = append(next, image.Rect(f.Min.X, f.Min.Y, f.Max.X, r.Min.Y))
		}
		if r.Max.Y < f.Max.Y {
			next = append(next, image.Rect(f.Min.X, r.Max.Y, f.Max.X, f.Max.Y))
		}
	}
	m.free = prune(next)
	m.used += r.Dx() * r.Dy()
}

// prune drops free rectangles contained in another one. Of two identical
// rectangles the first is kept.
func prune(rects []image.Rectangle) []image.Rectangle {
	out := rects[:0:0]
	for i, a := range rects {
		contained := false
		for j, b := range rects {
			if i == j || !a.In(b) {
				continue
			}
			if a == b && i < j {
				continue
			}
			contained = true
			break
		}
		if !contained {
			out = append(out, a)
		}
	}
	return out
}
