package geo

import (
	"math"
)

type Route []*Point

func (route Route) Length() float64 {
	l := 0.
	for i := 0; i < len(route)-1; i++ {
		l += EuclideanDistance(
			route[i].X, route[i].Y,
			route[i+1].X, route[i+1].Y,
		)
	}
	return l
}

func (route Route) Copy() Route {
	copied := make(Route, len(route))
	for i, p := range route {
		copied[i] = p.Copy()
	}
	return copied
}

func (route Route) GetBoundingBox() (tl, br *Point) {
	minX := math.Inf(1)
	minY := math.Inf(1)
	maxX := math.Inf(-1)
	maxY := math.Inf(-1)

	for _, p := range route {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return NewPoint(minX, minY), NewPoint(maxX, maxY)
}

// Simplify removes near-duplicate waypoints and interior points collinear with
// their neighbors, within eps.
func (route Route) Simplify(eps float64) Route {
	if len(route) <= 1 {
		return route
	}
	nearEq := func(a, b float64) bool {
		return math.Abs(a-b) < eps
	}

	deduped := Route{route[0]}
	for i := 1; i < len(route); i++ {
		prev := deduped[len(deduped)-1]
		if !nearEq(route[i].X, prev.X) || !nearEq(route[i].Y, prev.Y) {
			deduped = append(deduped, route[i])
		}
	}
	if len(deduped) <= 2 {
		return deduped
	}

	simplified := Route{deduped[0]}
	for i := 1; i < len(deduped)-1; i++ {
		prev := simplified[len(simplified)-1]
		curr := deduped[i]
		next := deduped[i+1]

		sameX := nearEq(prev.X, curr.X) && nearEq(curr.X, next.X)
		sameY := nearEq(prev.Y, curr.Y) && nearEq(curr.Y, next.Y)
		if sameX || sameY {
			continue
		}
		simplified = append(simplified, curr)
	}
	simplified = append(simplified, deduped[len(deduped)-1])
	return simplified
}
