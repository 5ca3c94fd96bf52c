package geo

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle. Unlike points, which are shared and
// mutated in routes, rects are treated as values.
type Rect struct {
	TopLeft *Point  `json:"topLeft"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func NewRect(x, y, width, height float64) *Rect {
	return &Rect{
		TopLeft: NewPoint(x, y),
		Width:   width,
		Height:  height,
	}
}

func (r *Rect) Copy() *Rect {
	if r == nil {
		return nil
	}
	return NewRect(r.TopLeft.X, r.TopLeft.Y, r.Width, r.Height)
}

func (r *Rect) Left() float64   { return r.TopLeft.X }
func (r *Rect) Right() float64  { return r.TopLeft.X + r.Width }
func (r *Rect) Top() float64    { return r.TopLeft.Y }
func (r *Rect) Bottom() float64 { return r.TopLeft.Y + r.Height }

func (r *Rect) Center() *Point {
	return NewPoint(r.TopLeft.X+r.Width/2, r.TopLeft.Y+r.Height/2)
}

func (r *Rect) Contains(p *Point) bool {
	return p.X >= r.Left() && p.X <= r.Right() &&
		p.Y >= r.Top() && p.Y <= r.Bottom()
}

// Outer returns r grown by padding on all four sides.
func (r *Rect) Outer(padding float64) *Rect {
	return NewRect(
		r.TopLeft.X-padding,
		r.TopLeft.Y-padding,
		r.Width+2*padding,
		r.Height+2*padding,
	)
}

func (r *Rect) Overlaps(other *Rect) bool {
	if r.Right() <= other.Left() || other.Right() <= r.Left() {
		return false
	}
	if r.Bottom() <= other.Top() || other.Bottom() <= r.Top() {
		return false
	}
	return true
}

// Union returns the smallest rect containing both r and other.
func (r *Rect) Union(other *Rect) *Rect {
	if r == nil {
		return other.Copy()
	}
	left := math.Min(r.Left(), other.Left())
	top := math.Min(r.Top(), other.Top())
	right := math.Max(r.Right(), other.Right())
	bottom := math.Max(r.Bottom(), other.Bottom())
	return NewRect(left, top, right-left, bottom-top)
}

// SegmentOverlapsRect reports whether the segment a->b crosses r grown by
// padding. It compares the segment's bounding box against the padded rect
// rather than clipping, which is exact for the axis-aligned segments routed
// paths are made of.
func SegmentOverlapsRect(a, b *Point, r *Rect, padding float64) bool {
	padded := r.Outer(padding)
	segLeft := math.Min(a.X, b.X)
	segRight := math.Max(a.X, b.X)
	segTop := math.Min(a.Y, b.Y)
	segBottom := math.Max(a.Y, b.Y)

	if segRight <= padded.Left() || padded.Right() <= segLeft {
		return false
	}
	if segBottom <= padded.Top() || padded.Bottom() <= segTop {
		return false
	}
	return true
}

func (r *Rect) ToString() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("{TopLeft: %s, Width: %.0f, Height: %.0f}", r.TopLeft.ToString(), r.Width, r.Height)
}
