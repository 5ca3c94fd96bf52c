package layered_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/archlayout/layered"
	"oss.terrastruct.com/archroute/lib/log"
)

func services(ids ...string) []*archgraph.Node {
	nodes := make([]*archgraph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = &archgraph.Node{ID: id, Kind: archgraph.KindService}
	}
	return nodes
}

func edges(pairs ...[2]string) []*archgraph.Edge {
	es := make([]*archgraph.Edge, len(pairs))
	for i, p := range pairs {
		es[i] = &archgraph.Edge{ID: p[0] + "-" + p[1], Src: p[0], Dst: p[1]}
	}
	return es
}

func node(g *archgraph.Graph, id string) *archgraph.Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// A chain stacks into consecutive layers separated by the rank gap.
func TestChainLayers(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = services("a", "b", "c")
	g.Edges = edges([2]string{"a", "b"}, [2]string{"b", "c"})

	err := layered.DefaultLayout(ctx, g)
	assert.NoError(t, err)

	a, b, c := node(g, "a"), node(g, "b"), node(g, "c")
	assert.GreaterOrEqual(t, b.Pos.Y, a.Pos.Y+archgraph.DEFAULT_SERVICE_HEIGHT+layered.DefaultOpts.RankSep)
	assert.GreaterOrEqual(t, c.Pos.Y, b.Pos.Y+archgraph.DEFAULT_SERVICE_HEIGHT+layered.DefaultOpts.RankSep)
}

// Siblings in one layer sit side by side, spaced by at least NodeSep.
func TestSiblingSpacing(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = services("root", "b", "c")
	g.Edges = edges([2]string{"root", "b"}, [2]string{"root", "c"})

	err := layered.DefaultLayout(ctx, g)
	assert.NoError(t, err)

	b, c := node(g, "b"), node(g, "c")
	assert.Equal(t, b.Pos.Y, c.Pos.Y, "children of one parent share a layer")

	left, right := b, c
	if right.Pos.X < left.Pos.X {
		left, right = right, left
	}
	assert.GreaterOrEqual(t, right.Pos.X, left.Pos.X+archgraph.DEFAULT_SERVICE_WIDTH+layered.DefaultOpts.NodeSep)
}

// A cycle must not hang the layering; the back edge is ignored for ranks.
func TestCycleTolerated(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	g := archgraph.NewGraph()
	g.Nodes = services("a", "b")
	g.Edges = edges([2]string{"a", "b"}, [2]string{"b", "a"})

	err := layered.DefaultLayout(ctx, g)
	assert.NoError(t, err)

	a, b := node(g, "a"), node(g, "b")
	assert.NotNil(t, a.Pos)
	assert.NotNil(t, b.Pos)
	assert.Greater(t, b.Pos.Y, a.Pos.Y, "forward edge wins the rank ordering")
}

// The four directions transform the same layering.
func TestDirections(t *testing.T) {
	for _, tc := range []struct {
		direction string
		after     func(a, b *archgraph.Node) bool
	}{
		{archgraph.DirectionDown, func(a, b *archgraph.Node) bool { return b.Pos.Y > a.Pos.Y }},
		{archgraph.DirectionUp, func(a, b *archgraph.Node) bool { return b.Pos.Y < a.Pos.Y }},
		{archgraph.DirectionRight, func(a, b *archgraph.Node) bool { return b.Pos.X > a.Pos.X }},
		{archgraph.DirectionLeft, func(a, b *archgraph.Node) bool { return b.Pos.X < a.Pos.X }},
	} {
		t.Run(tc.direction, func(t *testing.T) {
			ctx := log.WithTB(context.Background(), t)
			g := archgraph.NewGraph()
			g.Direction = tc.direction
			g.Nodes = services("a", "b")
			g.Edges = edges([2]string{"a", "b"})

			err := layered.DefaultLayout(ctx, g)
			assert.NoError(t, err)
			assert.True(t, tc.after(node(g, "a"), node(g, "b")),
				"b should be %s of a", tc.direction)
		})
	}
}

// Same input, same output.
func TestDeterministic(t *testing.T) {
	ctx := log.WithTB(context.Background(), t)
	build := func() *archgraph.Graph {
		g := archgraph.NewGraph()
		g.Nodes = services("a", "b", "c", "d", "e")
		g.Edges = edges(
			[2]string{"a", "b"}, [2]string{"a", "c"},
			[2]string{"b", "d"}, [2]string{"c", "d"},
			[2]string{"a", "e"},
		)
		return g
	}

	g1, g2 := build(), build()
	assert.NoError(t, layered.DefaultLayout(ctx, g1))
	assert.NoError(t, layered.DefaultLayout(ctx, g2))
	for i := range g1.Nodes {
		assert.True(t, g1.Nodes[i].Pos.Equals(g2.Nodes[i].Pos), g1.Nodes[i].ID)
	}
}
