package archrouter

import (
	"math"

	"oss.terrastruct.com/archroute/lib/geo"
)

// minChamferCut is the cut length below which a corner stays sharp; cutting
// a near-degenerate segment would just produce waypoint noise.
const minChamferCut = 1.

// chamfer replaces each interior right-angle corner with a 45° cut. The cut
// length is capped at a third of each adjacent segment so short segments get
// proportionally smaller chamfers.
func chamfer(route geo.Route, opts *Opts) geo.Route {
	if len(route) < 3 || opts.ChamferSize <= 0 {
		return route
	}

	out := geo.Route{route[0]}
	for i := 1; i < len(route)-1; i++ {
		prev, corner, next := route[i-1], route[i], route[i+1]
		inLen := geo.EuclideanDistance(prev.X, prev.Y, corner.X, corner.Y)
		outLen := geo.EuclideanDistance(corner.X, corner.Y, next.X, next.Y)

		cut := math.Min(opts.ChamferSize, math.Min(inLen/3, outLen/3))
		if cut < minChamferCut {
			out = append(out, corner)
			continue
		}
		out = append(out,
			pointToward(corner, prev, cut),
			pointToward(corner, next, cut),
		)
	}
	return append(out, route[len(route)-1])
}

// pointToward returns from moved dist towards to.
func pointToward(from, to *geo.Point, dist float64) *geo.Point {
	length := geo.EuclideanDistance(from.X, from.Y, to.X, to.Y)
	if length == 0 {
		return from.Copy()
	}
	t := dist / length
	return geo.NewPoint(from.X+(to.X-from.X)*t, from.Y+(to.Y-from.Y)*t)
}
