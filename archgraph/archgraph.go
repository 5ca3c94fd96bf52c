// Package archgraph holds the diagram model the routing and layout engines
// operate on: service and group nodes nested through parent references, and
// the edges connecting them.
package archgraph

import (
	"context"
	"sort"

	"cdr.dev/slog"

	"oss.terrastruct.com/archroute/lib/geo"
	"oss.terrastruct.com/archroute/lib/log"
)

// NodeKind discriminates leaf services from group containers.
type NodeKind string

const (
	KindService NodeKind = "service"
	KindGroup   NodeKind = "group"
)

const (
	DEFAULT_SERVICE_WIDTH  = 120.
	DEFAULT_SERVICE_HEIGHT = 80.

	MIN_GROUP_WIDTH  = 200.
	MIN_GROUP_HEIGHT = 150.

	GROUP_PADDING_TOP    = 45.
	GROUP_PADDING_SIDE   = 20.
	GROUP_PADDING_BOTTOM = 20.
)

// Layout directions.
const (
	DirectionDown  = "down"
	DirectionUp    = "up"
	DirectionRight = "right"
	DirectionLeft  = "left"
)

type Graph struct {
	Direction string  `json:"direction,omitempty"`
	Nodes     []*Node `json:"nodes"`
	Edges     []*Edge `json:"edges"`

	byID map[string]*Node
}

func NewGraph() *Graph {
	return &Graph{byID: make(map[string]*Node)}
}

type Node struct {
	Graph *Graph `json:"-"`

	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`

	// Pos is relative to the parent's top-left if nested, absolute otherwise.
	Pos    *geo.Point `json:"pos"`
	Width  float64    `json:"width,omitempty"`
	Height float64    `json:"height,omitempty"`

	ParentID string `json:"parent,omitempty"`

	Parent        *Node   `json:"-"`
	ChildrenArray []*Node `json:"-"`
}

type Edge struct {
	ID  string `json:"id"`
	Src string `json:"src"`
	Dst string `json:"dst"`

	Label string `json:"label,omitempty"`

	SrcHandle *Handle `json:"srcHandle,omitempty"`
	DstHandle *Handle `json:"dstHandle,omitempty"`

	// Pinned marks handles the user placed explicitly; recalculation keeps
	// them and allocates the other edges around them.
	Pinned bool `json:"pinned,omitempty"`

	// Lane disambiguates edges sharing a routing corridor; lanes in one
	// corridor group are 0..TotalLanes-1.
	Lane       int `json:"lane,omitempty"`
	TotalLanes int `json:"totalLanes,omitempty"`

	// Obstacles is the sibling-rect snapshot the route was computed against.
	Obstacles []*geo.Rect `json:"obstacles,omitempty"`

	Route geo.Route `json:"route,omitempty"`

	SrcNode *Node `json:"-"`
	DstNode *Node `json:"-"`
}

// LayoutEngine positions the nodes of a single-level graph (no nesting).
// The hierarchical driver feeds it one container's children at a time.
type LayoutEngine func(ctx context.Context, g *Graph) error

func (g *Graph) Node(id string) *Node {
	return g.byID[id]
}

// Roots returns the top-level nodes in input order.
func (g *Graph) Roots() []*Node {
	var roots []*Node
	for _, n := range g.Nodes {
		if n.Parent == nil {
			roots = append(roots, n)
		}
	}
	return roots
}

// BuildHierarchy resolves parent references into pointers and child lists.
// A parent id that doesn't resolve, or that would close a cycle, degrades to
// top-level rather than failing.
func (g *Graph) BuildHierarchy(ctx context.Context) {
	g.byID = make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		g.byID[n.ID] = n
		n.Graph = g
		n.Parent = nil
		n.ChildrenArray = nil
	}

	for _, n := range g.Nodes {
		if n.ParentID == "" {
			continue
		}
		parent, ok := g.byID[n.ParentID]
		if !ok {
			log.Warn(ctx, "node references unknown parent, treating as top-level",
				slog.F("node", n.ID), slog.F("parent", n.ParentID))
			continue
		}
		if parent == n {
			log.Warn(ctx, "node is its own parent, treating as top-level", slog.F("node", n.ID))
			continue
		}
		n.Parent = parent
	}

	// Break parent cycles before wiring child lists so every parent chain
	// terminates.
	for _, n := range g.Nodes {
		seen := map[*Node]struct{}{n: {}}
		for curr := n; curr.Parent != nil; curr = curr.Parent {
			if _, ok := seen[curr.Parent]; ok {
				log.Warn(ctx, "parent chain forms a cycle, breaking it",
					slog.F("node", n.ID), slog.F("at", curr.ID))
				curr.Parent = nil
				curr.ParentID = ""
				break
			}
			seen[curr.Parent] = struct{}{}
		}
	}

	for _, n := range g.Nodes {
		if n.Parent != nil {
			n.Parent.ChildrenArray = append(n.Parent.ChildrenArray, n)
		}
	}
	for _, n := range g.Nodes {
		sort.SliceStable(n.ChildrenArray, func(i, j int) bool {
			return n.ChildrenArray[i].ID < n.ChildrenArray[j].ID
		})
	}

	for _, e := range g.Edges {
		e.SrcNode = g.byID[e.Src]
		e.DstNode = g.byID[e.Dst]
	}
}

// Size returns the node's effective dimensions, falling back to the kind's
// default when unset.
func (n *Node) Size() (w, h float64) {
	w, h = n.Width, n.Height
	switch n.Kind {
	case KindGroup:
		if w == 0 {
			w = MIN_GROUP_WIDTH
		}
		if h == 0 {
			h = MIN_GROUP_HEIGHT
		}
	case KindService:
		fallthrough
	default:
		if w == 0 {
			w = DEFAULT_SERVICE_WIDTH
		}
		if h == 0 {
			h = DEFAULT_SERVICE_HEIGHT
		}
	}
	return w, h
}

// AbsTopLeft resolves the node's absolute position by summing the parent
// chain. BuildHierarchy breaks cycles, but a visited set guards resolution
// anyway so a malformed chain can't recurse forever.
func (n *Node) AbsTopLeft() *geo.Point {
	x, y := 0., 0.
	seen := make(map[*Node]struct{})
	for curr := n; curr != nil; curr = curr.Parent {
		if _, ok := seen[curr]; ok {
			break
		}
		seen[curr] = struct{}{}
		if curr.Pos != nil {
			x += curr.Pos.X
			y += curr.Pos.Y
		}
	}
	return geo.NewPoint(x, y)
}

func (n *Node) AbsRect() *geo.Rect {
	tl := n.AbsTopLeft()
	w, h := n.Size()
	return geo.NewRect(tl.X, tl.Y, w, h)
}

func (n *Node) Center() *geo.Point {
	return n.AbsRect().Center()
}

func (n *Node) IsDescendantOf(other *Node) bool {
	seen := make(map[*Node]struct{})
	for curr := n; curr != nil; curr = curr.Parent {
		if curr == other {
			return true
		}
		if _, ok := seen[curr]; ok {
			return false
		}
		seen[curr] = struct{}{}
	}
	return false
}

// Depth is the number of ancestors above the node.
func (n *Node) Depth() int {
	d := 0
	seen := make(map[*Node]struct{})
	for curr := n.Parent; curr != nil; curr = curr.Parent {
		if _, ok := seen[curr]; ok {
			break
		}
		seen[curr] = struct{}{}
		d++
	}
	return d
}
