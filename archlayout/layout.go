// Package archlayout runs the hierarchical auto-layout: a core engine
// positions each container's children independently, group sizes are fitted
// bottom-up around their contents, and the router recalculates every edge
// against the new geometry.
package archlayout

import (
	"context"

	"cdr.dev/slog"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"oss.terrastruct.com/xdefer"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/archlayout/layered"
	"oss.terrastruct.com/archroute/archrouter"
	"oss.terrastruct.com/archroute/lib/geo"
	"oss.terrastruct.com/archroute/lib/log"
)

type Opts struct {
	// Direction overrides the graph's layout direction when non-empty.
	Direction string
	// NodeSep is the spacing between sibling nodes.
	NodeSep float64
	// RankSep is the spacing between layers.
	RankSep float64
}

var DefaultOpts = Opts{
	NodeSep: layered.DefaultOpts.NodeSep,
	RankSep: layered.DefaultOpts.RankSep,
}

// Layout auto-positions every node of g and reroutes its edges. The engine
// positions one nesting level at a time; pass nil to use the built-in
// layered engine. Containers are laid out deepest first so each level sees
// the fitted sizes of the groups below it.
func Layout(ctx context.Context, g *archgraph.Graph, engine archgraph.LayoutEngine, opts *Opts) (err error) {
	defer xdefer.Errorf(&err, "failed to lay out diagram")
	if len(g.Nodes) <= 1 {
		return nil
	}
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if opts.Direction != "" {
		g.Direction = opts.Direction
	}
	if g.Direction == "" {
		g.Direction = archgraph.DirectionDown
	}
	if engine == nil {
		lopts := layered.ConfigurableOpts{NodeSep: opts.NodeSep, RankSep: opts.RankSep}
		if lopts.NodeSep == 0 {
			lopts.NodeSep = layered.DefaultOpts.NodeSep
		}
		if lopts.RankSep == 0 {
			lopts.RankSep = layered.DefaultOpts.RankSep
		}
		engine = func(ctx context.Context, sub *archgraph.Graph) error {
			return layered.Layout(ctx, sub, &lopts)
		}
	}

	g.BuildHierarchy(ctx)
	if err := layoutLevel(ctx, g, nil, engine); err != nil {
		return err
	}
	orderNodes(ctx, g)
	archrouter.Refresh(ctx, g, nil)
	return nil
}

// layoutLevel positions container's direct children (or the roots when
// container is nil). Nested groups are laid out and fitted first so the
// engine at this level works with their final sizes.
func layoutLevel(ctx context.Context, g *archgraph.Graph, container *archgraph.Node, engine archgraph.LayoutEngine) error {
	var children []*archgraph.Node
	if container == nil {
		children = g.Roots()
	} else {
		children = container.ChildrenArray
	}
	if len(children) == 0 {
		return nil
	}

	for _, child := range children {
		if child.Kind != archgraph.KindGroup {
			continue
		}
		if err := layoutLevel(ctx, g, child, engine); err != nil {
			return err
		}
		fitGroup(child)
	}

	sub := archgraph.NewGraph()
	sub.Direction = g.Direction
	proxies := make(map[string]*archgraph.Node, len(children))
	for _, child := range children {
		w, h := child.Size()
		p := &archgraph.Node{ID: child.ID, Kind: child.Kind, Width: w, Height: h}
		proxies[child.ID] = p
		sub.Nodes = append(sub.Nodes, p)
	}

	// Project edges onto this level: each endpoint maps to its ancestor among
	// children, and only cross-child edges constrain the engine.
	for _, e := range g.Edges {
		src := liftTo(e.SrcNode, container, proxies)
		dst := liftTo(e.DstNode, container, proxies)
		if src == nil || dst == nil || src == dst {
			continue
		}
		sub.Edges = append(sub.Edges, &archgraph.Edge{ID: e.ID, Src: src.ID, Dst: dst.ID})
	}

	if err := engine(ctx, sub); err != nil {
		return err
	}
	log.Debug(ctx, "laid out level",
		slog.F("container", containerID(container)), slog.F("nodes", len(children)))

	// Normalize so children start at the container's inner padding (or the
	// origin at top level), then copy positions back as parent-relative.
	minX, minY := proxies[children[0].ID].Pos.X, proxies[children[0].ID].Pos.Y
	for _, child := range children {
		p := proxies[child.ID]
		if p.Pos.X < minX {
			minX = p.Pos.X
		}
		if p.Pos.Y < minY {
			minY = p.Pos.Y
		}
	}
	offsetX, offsetY := -minX, -minY
	if container != nil {
		offsetX += archgraph.GROUP_PADDING_SIDE
		offsetY += archgraph.GROUP_PADDING_TOP
	}
	for _, child := range children {
		p := proxies[child.ID]
		child.Pos = geo.NewPoint(p.Pos.X+offsetX, p.Pos.Y+offsetY)
	}
	return nil
}

// liftTo walks n's parent chain up to the child of container it descends
// from, returning that child's proxy.
func liftTo(n, container *archgraph.Node, proxies map[string]*archgraph.Node) *archgraph.Node {
	for curr := n; curr != nil; curr = curr.Parent {
		if curr.Parent == container {
			return proxies[curr.ID]
		}
	}
	return nil
}

// fitGroup resizes a group to the tight bounding box of its children plus
// the inner padding, subject to the minimum group size. Children are assumed
// normalized to start at the padding offsets.
func fitGroup(group *archgraph.Node) {
	maxRight, maxBottom := 0., 0.
	for _, child := range group.ChildrenArray {
		w, h := child.Size()
		if r := child.Pos.X + w; r > maxRight {
			maxRight = r
		}
		if b := child.Pos.Y + h; b > maxBottom {
			maxBottom = b
		}
	}
	if len(group.ChildrenArray) == 0 {
		group.Width, group.Height = group.Size()
		return
	}
	group.Width = maxRight + archgraph.GROUP_PADDING_SIDE
	group.Height = maxBottom + archgraph.GROUP_PADDING_BOTTOM
	if group.Width < archgraph.MIN_GROUP_WIDTH {
		group.Width = archgraph.MIN_GROUP_WIDTH
	}
	if group.Height < archgraph.MIN_GROUP_HEIGHT {
		group.Height = archgraph.MIN_GROUP_HEIGHT
	}
}

// orderNodes sorts g.Nodes so every container precedes its descendants,
// which is the render order: a group's box draws under its contents. Ties
// break on node ID so the order is stable across runs.
func orderNodes(ctx context.Context, g *archgraph.Graph) {
	dg := simple.NewDirectedGraph()
	byGonumID := make(map[int64]*archgraph.Node, len(g.Nodes))
	idOf := make(map[*archgraph.Node]int64, len(g.Nodes))
	for i, n := range g.Nodes {
		gn := simple.Node(int64(i))
		dg.AddNode(gn)
		byGonumID[int64(i)] = n
		idOf[n] = int64(i)
	}
	for _, n := range g.Nodes {
		if n.Parent != nil {
			dg.SetEdge(dg.NewEdge(simple.Node(idOf[n.Parent]), simple.Node(idOf[n])))
		}
	}
	// among siblings, group boxes draw before leaves so leaves are never
	// hidden under an adjacent group
	siblingSets := [][]*archgraph.Node{g.Roots()}
	for _, n := range g.Nodes {
		if len(n.ChildrenArray) > 0 {
			siblingSets = append(siblingSets, n.ChildrenArray)
		}
	}
	for _, set := range siblingSets {
		for _, grp := range set {
			if grp.Kind != archgraph.KindGroup {
				continue
			}
			for _, leaf := range set {
				if leaf.Kind == archgraph.KindGroup || leaf == grp {
					continue
				}
				dg.SetEdge(dg.NewEdge(simple.Node(idOf[grp]), simple.Node(idOf[leaf])))
			}
		}
	}

	sorted, err := topo.SortStabilized(dg, func(nodes []graph.Node) {
		slices.SortFunc(nodes, func(a, b graph.Node) bool {
			return byGonumID[a.ID()].ID < byGonumID[b.ID()].ID
		})
	})
	if err != nil {
		// parent edges can't cycle after BuildHierarchy, but keep the
		// original order rather than drop nodes if they somehow do
		log.Warn(ctx, "node ordering failed, keeping input order", slog.F("err", err))
		return
	}
	ordered := make([]*archgraph.Node, 0, len(sorted))
	for _, gn := range sorted {
		ordered = append(ordered, byGonumID[gn.ID()])
	}
	g.Nodes = ordered
}

func containerID(n *archgraph.Node) string {
	if n == nil {
		return "(root)"
	}
	return n.ID
}
