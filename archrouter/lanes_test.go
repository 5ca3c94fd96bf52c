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

// Edges sharing a corridor split into parallel lanes: every member sees the
// same group size and the lane numbers are a permutation of 0..n-1.
func TestParallelEdgesGetLanes(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(300, 0)},
	}
	g.Edges = []*archgraph.Edge{
		{ID: "e1", Src: "a", Dst: "b"},
		{ID: "e2", Src: "a", Dst: "b"},
		{ID: "e3", Src: "a", Dst: "b"},
	}

	archrouter.Refresh(ctx, g, nil)

	seen := make(map[int]bool)
	for _, e := range g.Edges {
		assert.Equal(t, 3, e.TotalLanes, e.ID)
		assert.False(t, seen[e.Lane], "lane %d assigned twice", e.Lane)
		seen[e.Lane] = true
		assert.GreaterOrEqual(t, e.Lane, 0)
		assert.Less(t, e.Lane, 3)
	}
}

// Lane order follows the handles' spatial order, so parallel edges stay
// parallel instead of swapping midlines and crossing.
func TestLaneOrderMatchesHandleOrder(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(300, 0)},
	}
	g.Edges = []*archgraph.Edge{
		{ID: "e1", Src: "a", Dst: "b"},
		{ID: "e2", Src: "a", Dst: "b"},
	}

	archrouter.Refresh(ctx, g, nil)

	e1, e2 := g.Edges[0], g.Edges[1]
	assert.Less(t, e1.SrcHandle.Slot, e2.SrcHandle.Slot)
	assert.Less(t, e1.Lane, e2.Lane)
}

// Corner connections and self-loops don't share straight corridors; they
// stay out of lane groups.
func TestCornerAndLoopEdgesSkipLanes(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(400, 120)},
	}
	g.Edges = []*archgraph.Edge{
		{ID: "loop", Src: "a", Dst: "a"},
		{
			ID: "bend", Src: "a", Dst: "b",
			Pinned:    true,
			SrcHandle: archgraph.NewHandle(archgraph.SideRight, 5),
			DstHandle: archgraph.NewHandle(archgraph.SideTop, 5),
		},
	}

	archrouter.Refresh(ctx, g, nil)

	for _, e := range g.Edges {
		assert.Equal(t, 0, e.Lane, e.ID)
		assert.Equal(t, 1, e.TotalLanes, e.ID)
	}
}

// Unrelated edges far apart must not end up in one lane group.
func TestDistantCorridorsStaySeparate(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = []*archgraph.Node{
		{ID: "a", Kind: archgraph.KindService, Pos: geo.NewPoint(0, 0)},
		{ID: "b", Kind: archgraph.KindService, Pos: geo.NewPoint(300, 0)},
		{ID: "c", Kind: archgraph.KindService, Pos: geo.NewPoint(1000, 800)},
		{ID: "d", Kind: archgraph.KindService, Pos: geo.NewPoint(1300, 800)},
	}
	g.Edges = []*archgraph.Edge{
		{ID: "e1", Src: "a", Dst: "b"},
		{ID: "e2", Src: "c", Dst: "d"},
	}

	archrouter.Refresh(ctx, g, nil)

	assert.Equal(t, 1, g.Edges[0].TotalLanes)
	assert.Equal(t, 1, g.Edges[1].TotalLanes)
}
