package geo

import (
	"fmt"
)

// PARALLEL_EPSILON is the determinant threshold below which two segments are
// considered parallel and reported as non-intersecting.
const PARALLEL_EPSILON = 1e-9

type Segment struct {
	Start *Point
	End   *Point
}

func NewSegment(from, to *Point) *Segment {
	return &Segment{from, to}
}

func (s Segment) Length() float64 {
	return EuclideanDistance(s.Start.X, s.Start.Y, s.End.X, s.End.Y)
}

func (s Segment) IsHorizontal() bool {
	return s.Start.Y == s.End.Y
}

func (s Segment) IsVertical() bool {
	return s.Start.X == s.End.X
}

func (s Segment) Intersects(other Segment) bool {
	return IntersectionPoint(s.Start, s.End, other.Start, other.End) != nil
}

func (s Segment) ToString() string {
	return fmt.Sprintf("%v -> %v", s.Start.ToString(), s.End.ToString())
}

// IntersectionPoint returns the point where segments u and v cross, or nil if
// they do not cross within both segments.
//
// Solving the parametric equations with Cramer's rule:
//
//	x = u0.X + s * (u1.X - u0.X) = v0.X + t * (v1.X - v0.X)
//	y = u0.Y + s * (u1.Y - u0.Y) = v0.Y + t * (v1.Y - v0.Y)
//
// they intersect iff both s and t land in [0, 1].
func IntersectionPoint(u0, u1, v0, v1 *Point) *Point {
	udx := u1.X - u0.X
	vdx := v1.X - v0.X
	uvdx := v0.X - u0.X
	udy := u1.Y - u0.Y
	vdy := v1.Y - v0.Y
	uvdy := v0.Y - u0.Y

	denom := udy*vdx - udx*vdy
	if denom > -PARALLEL_EPSILON && denom < PARALLEL_EPSILON {
		// near-parallel
		return nil
	}
	s := (vdx*uvdy - vdy*uvdx) / denom
	t := (udx*uvdy - udy*uvdx) / denom

	if s < 0 || s > 1 || t < 0 || t > 1 {
		return nil
	}

	return NewPoint(u0.X+s*udx, u0.Y+s*udy)
}
