package archrouter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/archrouter"
	"oss.terrastruct.com/archroute/lib/geo"
	"oss.terrastruct.com/archroute/lib/log"
)

// routeAvoids asserts no segment of the route comes within pad of the rect.
func routeAvoids(t *testing.T, route geo.Route, r *geo.Rect, pad float64) {
	t.Helper()
	for i := 0; i < len(route)-1; i++ {
		assert.False(t, geo.SegmentOverlapsRect(route[i], route[i+1], r, pad),
			"segment %s -> %s too close to %s", route[i].ToString(), route[i+1].ToString(), r.ToString())
	}
}

// Two aligned nodes with nothing between them:
//
//	.----.          .----.
//	| a  |--------->| b  |
//	'----'          '----'
//
// The route must collapse to a single straight segment.
func TestDirectRoute(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(300, 0)},
	}
	g.Edges = []*archgraph.Edge{{ID: "e", Src: "a", Dst: "b"}}

	archrouter.Refresh(ctx, g, nil)

	route := g.Edges[0].Route
	assert.Len(t, route, 2)
	assert.True(t, route[0].Equals(geo.NewPoint(120, 44)), route[0].ToString())
	assert.True(t, route[1].Equals(geo.NewPoint(300, 44)), route[1].ToString())
}

// An obstacle squarely on the straight-line path:
//
//	.----.   .----.   .----.
//	| a  |   | o  |   | b  |
//	'----'   '----'   '----'
//
// The route must detour around o with at least the obstacle padding of
// clearance, not thread through it.
func TestRouteDetoursAroundObstacle(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(300, 0)},
		// centered on the midpoint of the straight path a -> b
		{ID: "o", Kind: archgraph.KindService, Pos: geo.NewPoint(160, 14), Width: 100, Height: 60},
	}
	g.Edges = []*archgraph.Edge{{ID: "e", Src: "a", Dst: "b"}}

	archrouter.Refresh(ctx, g, nil)

	e := g.Edges[0]
	assert.True(t, e.Route[0].Equals(geo.NewPoint(120, 44)))
	assert.True(t, e.Route[len(e.Route)-1].Equals(geo.NewPoint(300, 44)))

	obstacle := geo.NewRect(160, 14, 100, 60)
	routeAvoids(t, e.Route, obstacle, archrouter.DefaultOpts.ObstaclePadding-1e-9)

	// the snapshot the route was computed against travels with the edge
	assert.Len(t, e.Obstacles, 1)
	assert.Equal(t, 100., e.Obstacles[0].Width)
}

// Interior corners get 45° cuts sized to the adjacent segments.
func TestChamferedCorners(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(300, 300)},
	}
	g.Edges = []*archgraph.Edge{{ID: "e", Src: "a", Dst: "b"}}

	archrouter.Refresh(ctx, g, nil)

	// Z-shaped route, two corners, each replaced by a diagonal pair
	route := g.Edges[0].Route
	assert.Len(t, route, 6)

	diagonals := 0
	for i := 0; i < len(route)-1; i++ {
		dx := route[i+1].X - route[i].X
		dy := route[i+1].Y - route[i].Y
		if dx != 0 && dy != 0 {
			diagonals++
			assert.InDelta(t, 1, abs(dy/dx), 1e-9, "chamfer cut should be 45°")
		}
	}
	assert.Equal(t, 2, diagonals)
}

// A self-referencing edge hooks outside the node instead of degenerating.
func TestSelfLoop(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
	}
	g.Edges = []*archgraph.Edge{{ID: "loop", Src: "a", Dst: "a"}}

	archrouter.Refresh(ctx, g, nil)

	e := g.Edges[0]
	assert.Equal(t, archgraph.SideRight, e.SrcHandle.Side)
	assert.Equal(t, archgraph.SideBottom, e.DstHandle.Side)

	assert.Equal(t, 120., e.Route[0].X, "exits the right border")
	assert.Equal(t, 80., e.Route[len(e.Route)-1].Y, "re-enters the bottom border")

	maxX := 0.
	for _, p := range e.Route {
		if p.X > maxX {
			maxX = p.X
		}
	}
	assert.Equal(t, 120+archrouter.DefaultOpts.ObstaclePadding, maxX, "hook clears the node by the padding")
}

// A wall of obstacles between the endpoints with one corridor wide enough to
// route through:
//
//	.----.   .--. | .--------.  .----.
//	| a  |   |oA| | |  wall  |  | b  |
//	'----'   '--' | '--------'  '----'
//	             gap
//
// The default midline and every shift around the blockers fail, so the router
// must find the corridor and thread it.
func TestRouteThreadsGapBetweenObstacles(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(800, 300)},
		// wall with a 52px corridor between oA and oZ
		{ID: "oA", Kind: archgraph.KindService, Pos: geo.NewPoint(150, 84), Width: 120, Height: 200},
		{ID: "oZ", Kind: archgraph.KindService, Pos: geo.NewPoint(322, 100), Width: 60, Height: 60},
		{ID: "oM", Kind: archgraph.KindService, Pos: geo.NewPoint(330, 84), Width: 120, Height: 200},
		{ID: "oE", Kind: archgraph.KindService, Pos: geo.NewPoint(400, 30), Width: 80, Height: 20},
		{ID: "oB", Kind: archgraph.KindService, Pos: geo.NewPoint(470, 84), Width: 120, Height: 200},
		{ID: "oC", Kind: archgraph.KindService, Pos: geo.NewPoint(610, 84), Width: 120, Height: 200},
		{ID: "oD", Kind: archgraph.KindService, Pos: geo.NewPoint(770, 300), Width: 80, Height: 20},
	}
	g.Edges = []*archgraph.Edge{{
		ID: "e", Src: "a", Dst: "b", Pinned: true,
		SrcHandle: archgraph.NewHandle(archgraph.SideRight, 5),
		DstHandle: archgraph.NewHandle(archgraph.SideLeft, 5),
	}}

	archrouter.Refresh(ctx, g, nil)

	e := g.Edges[0]
	pad := archrouter.DefaultOpts.ObstaclePadding - 1e-9
	for _, n := range g.Nodes {
		if n.ID == "a" || n.ID == "b" {
			continue
		}
		routeAvoids(t, e.Route, n.AbsRect(), pad)
	}

	// the long vertical traverse must run inside the corridor, between
	// oA's right border (270) and oZ's left border (322)
	crossX := -1.
	for i := 0; i < len(e.Route)-1; i++ {
		if e.Route[i].X == e.Route[i+1].X && abs(e.Route[i+1].Y-e.Route[i].Y) > 100 {
			crossX = e.Route[i].X
		}
	}
	assert.Greater(t, crossX, 270.)
	assert.Less(t, crossX, 322.)
}

// A wall with no usable corridor: every midline between the endpoints is
// blocked, so the router scans outward and ends up behind the source. The
// traverse must hug the source node's far border, never cut through it.
func TestRouteScansBehindSource(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(800, 300)},
		// solid wall: every inter-obstacle gap is under the minimum width
		{ID: "oA", Kind: archgraph.KindService, Pos: geo.NewPoint(150, 84), Width: 160, Height: 200},
		{ID: "oM", Kind: archgraph.KindService, Pos: geo.NewPoint(330, 84), Width: 120, Height: 200},
		{ID: "oB", Kind: archgraph.KindService, Pos: geo.NewPoint(470, 84), Width: 120, Height: 200},
		{ID: "oC", Kind: archgraph.KindService, Pos: geo.NewPoint(610, 84), Width: 120, Height: 200},
		{ID: "oE", Kind: archgraph.KindService, Pos: geo.NewPoint(400, 30), Width: 80, Height: 20},
		{ID: "oD", Kind: archgraph.KindService, Pos: geo.NewPoint(770, 300), Width: 80, Height: 20},
	}
	g.Edges = []*archgraph.Edge{{
		ID: "e", Src: "a", Dst: "b", Pinned: true,
		SrcHandle: archgraph.NewHandle(archgraph.SideRight, 5),
		DstHandle: archgraph.NewHandle(archgraph.SideLeft, 5),
	}}

	archrouter.Refresh(ctx, g, nil)

	e := g.Edges[0]
	pad := archrouter.DefaultOpts.ObstaclePadding - 1e-9
	for _, n := range g.Nodes {
		if n.ID == "a" || n.ID == "b" {
			continue
		}
		routeAvoids(t, e.Route, n.AbsRect(), pad)
	}

	crossX := -1.
	for i := 0; i < len(e.Route)-1; i++ {
		if e.Route[i].X == e.Route[i+1].X && abs(e.Route[i+1].Y-e.Route[i].Y) > 100 {
			crossX = e.Route[i].X
		}
	}
	// x=100 and every other midline over the source's body clears the
	// obstacle set but slices the source node; the scan must pass them up
	// and settle on the node's left border
	assert.Equal(t, 0., crossX)
}

// Both handles pinned to the same side: the route bows out past the outermost
// border instead of connecting through the nodes.
//
//	.----.--.
//	| a  |  |
//	'----'  |
//	.----.  |
//	| b  |<-'
//	'----'
func TestSameSideUTurn(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 200)},
	}
	g.Edges = []*archgraph.Edge{{
		ID: "e", Src: "a", Dst: "b", Pinned: true,
		SrcHandle: archgraph.NewHandle(archgraph.SideRight, 5),
		DstHandle: archgraph.NewHandle(archgraph.SideRight, 5),
	}}

	archrouter.Refresh(ctx, g, nil)

	e := g.Edges[0]
	assert.True(t, e.Route[0].Equals(geo.NewPoint(120, 44)))
	assert.True(t, e.Route[len(e.Route)-1].Equals(geo.NewPoint(120, 244)))

	maxX := 0.
	for _, p := range e.Route {
		if p.X > maxX {
			maxX = p.X
		}
	}
	assert.Equal(t, 120+archrouter.DefaultOpts.ObstaclePadding, maxX,
		"turnaround clears the outermost right border by the padding")
}

// An obstacle sitting on the straight corridor makes the direct side pair
// lose to an L-shaped pair whose corridor is clear.
func TestObstaclePenaltyShiftsSideChoice(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	build := func(withObstacle bool) *archgraph.Graph {
		g := archgraph.NewGraph()
		g.Nodes = []*archgraph.Node{
			{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
			{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(400, 160)},
		}
		if withObstacle {
			g.Nodes = append(g.Nodes, &archgraph.Node{
				ID: "o", Kind: archgraph.KindService, Pos: geo.NewPoint(200, -40), Width: 120, Height: 80,
			})
		}
		g.Edges = []*archgraph.Edge{{ID: "e", Src: "a", Dst: "b"}}
		return g
	}

	clear := build(false)
	archrouter.Refresh(ctx, clear, nil)
	assert.Equal(t, archgraph.SideRight, clear.Edges[0].SrcHandle.Side)
	assert.Equal(t, archgraph.SideLeft, clear.Edges[0].DstHandle.Side)

	blocked := build(true)
	archrouter.Refresh(ctx, blocked, nil)
	e := blocked.Edges[0]
	assert.Equal(t, archgraph.SideBottom, e.SrcHandle.Side, "source exits under the obstacle")
	assert.Equal(t, archgraph.SideLeft, e.DstHandle.Side)
	routeAvoids(t, e.Route, geo.NewRect(200, -40, 120, 80),
		archrouter.DefaultOpts.ObstaclePadding-1e-9)
}

// Routing is a pure function of node geometry: running it twice on the same
// diagram must not change anything.
func TestRefreshIsIdempotent(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(300, 0)},
		{ID: "o", Kind: archgraph.KindService, Pos: geo.NewPoint(160, 14), Width: 100, Height: 60},
		{ID: "c", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 300)},
	}
	g.Edges = []*archgraph.Edge{
		{ID: "e1", Src: "a", Dst: "b"},
		{ID: "e2", Src: "a", Dst: "b"},
		{ID: "e3", Src: "c", Dst: "b"},
		{ID: "e4", Src: "a", Dst: "a"},
	}

	archrouter.Refresh(ctx, g, nil)

	type snapshot struct {
		src, dst         archgraph.Handle
		lane, totalLanes int
		route            geo.Route
	}
	first := make([]snapshot, len(g.Edges))
	for i, e := range g.Edges {
		first[i] = snapshot{*e.SrcHandle, *e.DstHandle, e.Lane, e.TotalLanes, e.Route.Copy()}
	}

	archrouter.Refresh(ctx, g, nil)

	for i, e := range g.Edges {
		assert.Equal(t, first[i].src, *e.SrcHandle, e.ID)
		assert.Equal(t, first[i].dst, *e.DstHandle, e.ID)
		assert.Equal(t, first[i].lane, e.Lane, e.ID)
		assert.Equal(t, first[i].totalLanes, e.TotalLanes, e.ID)
		assert.Equal(t, first[i].route, e.Route, e.ID)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
