package archrouter

import (
	"math"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/lib/geo"
)

// offAxisRatio is the minor/major displacement ratio above which sideways
// (L-shaped) side pairs are also evaluated.
const offAxisRatio = 0.25

type sidePair struct {
	src, dst archgraph.Side
}

// chooseSides picks which side of each node the edge should attach to.
// The dominant displacement axis decides the primary candidate; when the edge
// is significantly off-axis, perpendicular alternatives are scored too.
// Score is Manhattan distance between the side midpoints, plus a penalty per
// obstacle overlapping the corridor between them, plus a large penalty for a
// side facing away from the other endpoint.
func chooseSides(srcRect, dstRect *geo.Rect, obstacles []*geo.Rect, opts *Opts) (archgraph.Side, archgraph.Side) {
	srcC := srcRect.Center()
	dstC := dstRect.Center()
	dx := dstC.X - srcC.X
	dy := dstC.Y - srcC.Y

	var horizontal sidePair
	if dx >= 0 {
		horizontal = sidePair{archgraph.SideRight, archgraph.SideLeft}
	} else {
		horizontal = sidePair{archgraph.SideLeft, archgraph.SideRight}
	}
	var vertical sidePair
	if dy >= 0 {
		vertical = sidePair{archgraph.SideBottom, archgraph.SideTop}
	} else {
		vertical = sidePair{archgraph.SideTop, archgraph.SideBottom}
	}

	var candidates []sidePair
	if math.Abs(dy) > math.Abs(dx) {
		candidates = append(candidates, vertical)
		if math.Abs(dx) > math.Abs(dy)*offAxisRatio {
			candidates = append(candidates,
				sidePair{vertical.src, horizontal.dst},
				sidePair{horizontal.src, vertical.dst},
				horizontal,
			)
		}
	} else {
		candidates = append(candidates, horizontal)
		if math.Abs(dy) > math.Abs(dx)*offAxisRatio {
			candidates = append(candidates,
				sidePair{horizontal.src, vertical.dst},
				sidePair{vertical.src, horizontal.dst},
				vertical,
			)
		}
	}

	best := candidates[0]
	bestScore := math.Inf(1)
	for _, cand := range candidates {
		score := scoreSidePair(cand, srcRect, dstRect, obstacles, opts)
		if score < bestScore {
			bestScore = score
			best = cand
		}
	}
	return best.src, best.dst
}

func scoreSidePair(pair sidePair, srcRect, dstRect *geo.Rect, obstacles []*geo.Rect, opts *Opts) float64 {
	srcAnchor := sideMidpoint(srcRect, pair.src)
	dstAnchor := sideMidpoint(dstRect, pair.dst)

	score := geo.ManhattanDistance(srcAnchor, dstAnchor)

	for _, ob := range obstacles {
		if geo.SegmentOverlapsRect(srcAnchor, dstAnchor, ob, opts.ObstaclePadding) {
			score += obstaclePenalty
		}
	}

	if facesAway(pair.src, srcRect.Center(), dstRect.Center()) {
		score += facingAwayPenalty
	}
	if facesAway(pair.dst, dstRect.Center(), srcRect.Center()) {
		score += facingAwayPenalty
	}
	return score
}

// facesAway reports whether a handle on the given side of a node at `from`
// points away from `to`.
func facesAway(side archgraph.Side, from, to *geo.Point) bool {
	switch side {
	case archgraph.SideRight:
		return to.X < from.X
	case archgraph.SideLeft:
		return to.X > from.X
	case archgraph.SideBottom:
		return to.Y < from.Y
	case archgraph.SideTop:
		return to.Y > from.Y
	default:
		return false
	}
}

func sideMidpoint(r *geo.Rect, side archgraph.Side) *geo.Point {
	switch side {
	case archgraph.SideTop:
		return geo.NewPoint(r.Left()+r.Width/2, r.Top())
	case archgraph.SideBottom:
		return geo.NewPoint(r.Left()+r.Width/2, r.Bottom())
	case archgraph.SideLeft:
		return geo.NewPoint(r.Left(), r.Top()+r.Height/2)
	case archgraph.SideRight:
		fallthrough
	default:
		return geo.NewPoint(r.Right(), r.Top()+r.Height/2)
	}
}

// handlePoint returns the absolute position of a handle slot. The side is
// partitioned into HandlesPerSide equal segments; the slot sits at the center
// of its segment.
func handlePoint(r *geo.Rect, h *archgraph.Handle, perSide int) *geo.Point {
	t := (float64(h.Slot) + 0.5) / float64(perSide)
	switch h.Side {
	case archgraph.SideTop:
		return geo.NewPoint(r.Left()+t*r.Width, r.Top())
	case archgraph.SideBottom:
		return geo.NewPoint(r.Left()+t*r.Width, r.Bottom())
	case archgraph.SideLeft:
		return geo.NewPoint(r.Left(), r.Top()+t*r.Height)
	case archgraph.SideRight:
		fallthrough
	default:
		return geo.NewPoint(r.Right(), r.Top()+t*r.Height)
	}
}
