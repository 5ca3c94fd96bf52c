package archrouter

import (
	"context"
	"math"
	"sort"

	"cdr.dev/slog"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/lib/geo"
	"oss.terrastruct.com/archroute/lib/log"
)

// Refresh recomputes handles, lanes, and routes for every edge from the
// current node positions. It is the one entry point the canvas layer needs
// after any geometry change. It never fails; see the package comment.
func Refresh(ctx context.Context, g *archgraph.Graph, opts *Opts) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	g.BuildHierarchy(ctx)
	AssignHandles(g, opts)
	plans := buildPlans(g, opts)
	assignLanes(plans, opts)
	for _, pl := range plans {
		routeEdge(ctx, pl, opts)
	}
}

// connection patterns between the two chosen sides
type pattern int

const (
	// opposite horizontal sides, midline is an x value
	patternHorizontal pattern = iota
	// opposite vertical sides, midline is a y value
	patternVertical
	// perpendicular sides, single corner
	patternCorner
	// same side on both ends, U-shaped route past the outermost border
	patternSameSide
)

type plan struct {
	edge             *archgraph.Edge
	srcSide, dstSide archgraph.Side
	src, dst         *geo.Point
	pat              pattern

	// midAxisX says whether the midline is an x value (true) or y value.
	// Corner plans have no midline.
	midAxisX   bool
	defaultMid float64
	laneOffset float64

	// perpendicular span of the route, for lane grouping
	perpLo, perpHi float64

	obstacles []*geo.Rect
}

func buildPlans(g *archgraph.Graph, opts *Opts) []*plan {
	plans := make([]*plan, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.SrcNode == nil || e.DstNode == nil || e.SrcHandle == nil || e.DstHandle == nil {
			continue
		}
		pl := &plan{
			edge:      e,
			srcSide:   e.SrcHandle.Side,
			dstSide:   e.DstHandle.Side,
			src:       handlePoint(e.SrcNode.AbsRect(), e.SrcHandle, opts.HandlesPerSide),
			dst:       handlePoint(e.DstNode.AbsRect(), e.DstHandle, opts.HandlesPerSide),
			obstacles: edgeObstacles(e),
		}
		pl.pat = classify(pl.srcSide, pl.dstSide)
		pl.computeMidline(opts)

		e.Obstacles = make([]*geo.Rect, len(pl.obstacles))
		for i, ob := range pl.obstacles {
			e.Obstacles[i] = ob.Copy()
		}
		plans = append(plans, pl)
	}
	return plans
}

func classify(srcSide, dstSide archgraph.Side) pattern {
	if srcSide == dstSide {
		return patternSameSide
	}
	if srcSide == dstSide.Opposite() {
		if srcSide.IsHorizontal() {
			return patternHorizontal
		}
		return patternVertical
	}
	return patternCorner
}

func (pl *plan) computeMidline(opts *Opts) {
	switch pl.pat {
	case patternHorizontal:
		pl.midAxisX = true
		pl.defaultMid = (pl.src.X + pl.dst.X) / 2
	case patternVertical:
		pl.midAxisX = false
		pl.defaultMid = (pl.src.Y + pl.dst.Y) / 2
	case patternSameSide:
		pad := opts.ObstaclePadding
		switch pl.srcSide {
		case archgraph.SideRight:
			pl.midAxisX = true
			pl.defaultMid = math.Max(pl.src.X, pl.dst.X) + pad
		case archgraph.SideLeft:
			pl.midAxisX = true
			pl.defaultMid = math.Min(pl.src.X, pl.dst.X) - pad
		case archgraph.SideBottom:
			pl.midAxisX = false
			pl.defaultMid = math.Max(pl.src.Y, pl.dst.Y) + pad
		case archgraph.SideTop:
			pl.midAxisX = false
			pl.defaultMid = math.Min(pl.src.Y, pl.dst.Y) - pad
		}
	case patternCorner:
		// no midline
	}

	if pl.midAxisX {
		pl.perpLo = math.Min(pl.src.Y, pl.dst.Y)
		pl.perpHi = math.Max(pl.src.Y, pl.dst.Y)
	} else {
		pl.perpLo = math.Min(pl.src.X, pl.dst.X)
		pl.perpHi = math.Max(pl.src.X, pl.dst.X)
	}
}

func routeEdge(ctx context.Context, pl *plan, opts *Opts) {
	var pts geo.Route
	switch {
	case pl.edge.SrcNode == pl.edge.DstNode:
		pts = selfLoopRoute(pl, opts)
	case pl.pat == patternCorner:
		pts = cornerRoute(pl, opts)
	default:
		pts = zRoute(ctx, pl, opts)
	}
	pts = detourSegments(pts, pl.obstacles, opts)
	pts = pts.Simplify(opts.CollinearEps)
	pl.edge.Route = chamfer(pts, opts)
}

// hvhPath is horizontal-vertical-horizontal: the middle segment is vertical
// at x=mid.
func hvhPath(src, dst *geo.Point, mid float64) geo.Route {
	return geo.Route{
		src.Copy(),
		geo.NewPoint(mid, src.Y),
		geo.NewPoint(mid, dst.Y),
		dst.Copy(),
	}
}

// vhvPath is vertical-horizontal-vertical: the middle segment is horizontal
// at y=mid.
func vhvPath(src, dst *geo.Point, mid float64) geo.Route {
	return geo.Route{
		src.Copy(),
		geo.NewPoint(src.X, mid),
		geo.NewPoint(dst.X, mid),
		dst.Copy(),
	}
}

func routeClear(route geo.Route, obstacles []*geo.Rect, pad float64) bool {
	for i := 0; i < len(route)-1; i++ {
		for _, ob := range obstacles {
			if geo.SegmentOverlapsRect(route[i], route[i+1], ob, pad) {
				return false
			}
		}
	}
	return true
}

// zRoute finds a midline for a 3-segment orthogonal path. Each stage of the
// search is a strictly cheaper-to-compute fallback; the final stage accepts
// the blocked default so the route always exists.
func zRoute(ctx context.Context, pl *plan, opts *Opts) geo.Route {
	pad := opts.ObstaclePadding
	build := vhvPath
	if pl.midAxisX {
		build = hvhPath
	}
	mid := pl.defaultMid + pl.laneOffset

	primary := build(pl.src, pl.dst, mid)
	if routeClear(primary, pl.obstacles, pad) {
		return primary
	}

	// shift the midline just past whatever blocks the middle segment,
	// preferring the side in the direction of travel
	if cleared, ok := shiftedMidline(pl, build, mid, opts); ok {
		log.Debug(ctx, "midline shifted around obstacles", slog.F("edge", pl.edge.ID))
		return cleared
	}

	// switch orientation and try the same on the other axis
	if pl.pat == patternHorizontal || pl.pat == patternVertical {
		flipped := *pl
		flipped.midAxisX = !pl.midAxisX
		if flipped.midAxisX {
			flipped.defaultMid = (pl.src.X + pl.dst.X) / 2
		} else {
			flipped.defaultMid = (pl.src.Y + pl.dst.Y) / 2
		}
		build2 := vhvPath
		if flipped.midAxisX {
			build2 = hvhPath
		}
		mid2 := flipped.defaultMid + pl.laneOffset
		alt := build2(pl.src, pl.dst, mid2)
		if routeClear(alt, pl.obstacles, pad) {
			log.Debug(ctx, "switched route orientation", slog.F("edge", pl.edge.ID))
			return alt
		}
		if cleared, ok := shiftedMidline(&flipped, build2, mid2, opts); ok {
			log.Debug(ctx, "switched orientation and shifted midline", slog.F("edge", pl.edge.ID))
			return cleared
		}
	}

	if cleared, ok := gapRoute(pl, build, opts); ok {
		log.Debug(ctx, "routed through obstacle gap", slog.F("edge", pl.edge.ID))
		return cleared
	}

	if cleared, ok := scanMidlines(pl, build, opts); ok {
		log.Debug(ctx, "midline found by linear scan", slog.F("edge", pl.edge.ID))
		return cleared
	}

	log.Debug(ctx, "no clear midline, keeping default route", slog.F("edge", pl.edge.ID))
	return primary
}

// shiftedMidline moves the midline just outside the combined bounds of the
// obstacles blocking the middle segment.
func shiftedMidline(pl *plan, build func(src, dst *geo.Point, mid float64) geo.Route, mid float64, opts *Opts) (geo.Route, bool) {
	pad := opts.ObstaclePadding
	route := build(pl.src, pl.dst, mid)

	var blockedBounds *geo.Rect
	for _, ob := range pl.obstacles {
		if geo.SegmentOverlapsRect(route[1], route[2], ob, pad) {
			blockedBounds = blockedBounds.Union(ob)
		}
	}
	if blockedBounds == nil {
		return nil, false
	}

	var before, after float64
	if pl.midAxisX {
		before, after = blockedBounds.Left()-pad, blockedBounds.Right()+pad
	} else {
		before, after = blockedBounds.Top()-pad, blockedBounds.Bottom()+pad
	}

	var srcCoord, dstCoord float64
	if pl.midAxisX {
		srcCoord, dstCoord = pl.src.X, pl.dst.X
	} else {
		srcCoord, dstCoord = pl.src.Y, pl.dst.Y
	}
	candidates := []float64{after, before}
	if dstCoord < srcCoord {
		candidates = []float64{before, after}
	}

	for _, cand := range candidates {
		if r := build(pl.src, pl.dst, cand); routeClear(r, pl.obstacles, pad) {
			return r, true
		}
	}
	return nil, false
}

// gapRoute looks for a clear corridor between consecutive obstacles within
// the span of the two endpoints. Gaps that don't require doubling back past
// an endpoint are preferred.
func gapRoute(pl *plan, build func(src, dst *geo.Point, mid float64) geo.Route, opts *Opts) (geo.Route, bool) {
	pad := opts.ObstaclePadding

	var lo, hi float64
	if pl.midAxisX {
		lo, hi = math.Min(pl.src.X, pl.dst.X), math.Max(pl.src.X, pl.dst.X)
	} else {
		lo, hi = math.Min(pl.src.Y, pl.dst.Y), math.Max(pl.src.Y, pl.dst.Y)
	}

	// obstacles the midline could run into, sorted along the midline axis
	var relevant []*geo.Rect
	for _, ob := range pl.obstacles {
		var obLo, obHi float64
		if pl.midAxisX {
			obLo, obHi = ob.Left(), ob.Right()
		} else {
			obLo, obHi = ob.Top(), ob.Bottom()
		}
		if obHi > lo-pad && obLo < hi+pad {
			relevant = append(relevant, ob)
		}
	}
	if len(relevant) < 2 {
		return nil, false
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		if pl.midAxisX {
			return relevant[i].Left() < relevant[j].Left()
		}
		return relevant[i].Top() < relevant[j].Top()
	})

	type gap struct {
		mid      float64
		backward bool
	}
	var gaps []gap
	for i := 0; i < len(relevant)-1; i++ {
		var gapLo, gapHi float64
		if pl.midAxisX {
			gapLo, gapHi = relevant[i].Right(), relevant[i+1].Left()
		} else {
			gapLo, gapHi = relevant[i].Bottom(), relevant[i+1].Top()
		}
		if gapHi-gapLo < opts.MinGapWidth {
			continue
		}
		mid := (gapLo + gapHi) / 2
		gaps = append(gaps, gap{mid: mid, backward: mid < lo || mid > hi})
	}

	center := (lo + hi) / 2
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].backward != gaps[j].backward {
			return !gaps[i].backward
		}
		return math.Abs(gaps[i].mid-center) < math.Abs(gaps[j].mid-center)
	})

	for _, gp := range gaps {
		if r := build(pl.src, pl.dst, gp.mid); routeClear(r, pl.obstacles, pad) {
			return r, true
		}
	}
	return nil, false
}

// scanMidlines is the systematic last resort: fixed increments stepping away
// from the source, then from the target, first clear candidate wins.
func scanMidlines(pl *plan, build func(src, dst *geo.Point, mid float64) geo.Route, opts *Opts) (geo.Route, bool) {
	pad := opts.ObstaclePadding

	var srcCoord, dstCoord float64
	if pl.midAxisX {
		srcCoord, dstCoord = pl.src.X, pl.dst.X
	} else {
		srcCoord, dstCoord = pl.src.Y, pl.dst.Y
	}

	// the endpoints' own nodes are not in the obstacle set, and the scan
	// ranges past them, so a candidate midline can slice through one
	srcRect := pl.edge.SrcNode.AbsRect()
	dstRect := pl.edge.DstNode.AbsRect()

	for _, base := range []float64{srcCoord, dstCoord} {
		for k := 1; k <= opts.ScanLimit; k++ {
			for _, cand := range []float64{base + float64(k)*opts.ScanStep, base - float64(k)*opts.ScanStep} {
				r := build(pl.src, pl.dst, cand)
				if geo.SegmentOverlapsRect(r[1], r[2], srcRect, 0) ||
					geo.SegmentOverlapsRect(r[1], r[2], dstRect, 0) {
					continue
				}
				if routeClear(r, pl.obstacles, pad) {
					return r, true
				}
			}
		}
	}
	return nil, false
}

// cornerRoute connects perpendicular sides with a single bend, flipping the
// bend order if the first corner is blocked.
func cornerRoute(pl *plan, opts *Opts) geo.Route {
	var corner, altCorner *geo.Point
	if pl.srcSide.IsHorizontal() {
		corner = geo.NewPoint(pl.dst.X, pl.src.Y)
		altCorner = geo.NewPoint(pl.src.X, pl.dst.Y)
	} else {
		corner = geo.NewPoint(pl.src.X, pl.dst.Y)
		altCorner = geo.NewPoint(pl.dst.X, pl.src.Y)
	}

	primary := geo.Route{pl.src.Copy(), corner, pl.dst.Copy()}
	if routeClear(primary, pl.obstacles, opts.ObstaclePadding) {
		return primary
	}
	alt := geo.Route{pl.src.Copy(), altCorner, pl.dst.Copy()}
	if routeClear(alt, pl.obstacles, opts.ObstaclePadding) {
		return alt
	}
	return primary
}

// selfLoopRoute hooks around the node's bottom-right corner.
func selfLoopRoute(pl *plan, opts *Opts) geo.Route {
	pad := opts.ObstaclePadding
	r := pl.edge.SrcNode.AbsRect()
	return geo.Route{
		pl.src.Copy(),
		geo.NewPoint(r.Right()+pad, pl.src.Y),
		geo.NewPoint(r.Right()+pad, r.Bottom()+pad),
		geo.NewPoint(pl.dst.X, r.Bottom()+pad),
		pl.dst.Copy(),
	}
}

// detourSegments locally reroutes any remaining segment that crosses an
// obstacle around that obstacle's padded bounds. One level of correction
// only; the detour legs are not themselves re-checked.
func detourSegments(route geo.Route, obstacles []*geo.Rect, opts *Opts) geo.Route {
	if len(route) < 2 {
		return route
	}
	pad := opts.ObstaclePadding
	out := geo.Route{route[0]}
	for i := 0; i < len(route)-1; i++ {
		a, b := route[i], route[i+1]
		for _, ob := range obstacles {
			if !geo.SegmentOverlapsRect(a, b, ob, pad) {
				continue
			}
			padded := ob.Outer(pad)
			if padded.Contains(a) || padded.Contains(b) {
				// endpoint already inside the clearance zone, leave the
				// segment alone
				continue
			}
			if legs, ok := detourAround(a, b, padded); ok {
				out = append(out, legs...)
			}
			break
		}
		out = append(out, b)
	}
	return out
}

// detourAround returns intermediate waypoints steering the orthogonal
// segment a->b around the padded box, hugging whichever side is nearer.
func detourAround(a, b *geo.Point, padded *geo.Rect) ([]*geo.Point, bool) {
	if a.Y == b.Y {
		y := a.Y
		enter, exit := padded.Left(), padded.Right()
		if b.X < a.X {
			enter, exit = padded.Right(), padded.Left()
		}
		around := padded.Top()
		if math.Abs(y-padded.Bottom()) < math.Abs(y-padded.Top()) {
			around = padded.Bottom()
		}
		return []*geo.Point{
			geo.NewPoint(enter, y),
			geo.NewPoint(enter, around),
			geo.NewPoint(exit, around),
			geo.NewPoint(exit, y),
		}, true
	}
	if a.X == b.X {
		x := a.X
		enter, exit := padded.Top(), padded.Bottom()
		if b.Y < a.Y {
			enter, exit = padded.Bottom(), padded.Top()
		}
		around := padded.Left()
		if math.Abs(x-padded.Right()) < math.Abs(x-padded.Left()) {
			around = padded.Right()
		}
		return []*geo.Point{
			geo.NewPoint(x, enter),
			geo.NewPoint(around, enter),
			geo.NewPoint(around, exit),
			geo.NewPoint(x, exit),
		}, true
	}
	// not axis-aligned, leave as-is
	return nil, false
}
