package archrouter

import (
	"math"
	"sort"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/lib/geo"
)

type sideKey struct {
	node string
	side archgraph.Side
}

// occupancy tracks which slots are taken per (node, side). Source-role and
// target-role attachments on the same side compete for the same physical
// slots, so there is a single table for both.
type occupancy map[sideKey][]bool

func (occ occupancy) slots(key sideKey, perSide int) []bool {
	s, ok := occ[key]
	if !ok {
		s = make([]bool, perSide)
		occ[key] = s
	}
	return s
}

// attachment is one edge endpoint landing on a (node, side).
type attachment struct {
	edge  *archgraph.Edge
	isSrc bool
	// far is the center of the edge's other endpoint, used to order
	// attachments along the side so edges don't cross right at the border.
	far *geo.Point
}

// AssignHandles picks a side and a slot for both endpoints of every edge.
// Pinned edges keep the handles they came with; everything else is
// recomputed from current positions. The allocation is deterministic:
// identical input produces identical handles.
func AssignHandles(g *archgraph.Graph, opts *Opts) {
	occ := make(occupancy)
	bySide := make(map[sideKey][]*attachment)

	// Pinned handles claim their slots first so recomputed edges flow
	// around them.
	for _, e := range g.Edges {
		if e.SrcNode == nil || e.DstNode == nil || !pinned(e) {
			continue
		}
		markSlot(occ, sideKey{e.Src, e.SrcHandle.Side}, e.SrcHandle.Slot, opts.HandlesPerSide)
		markSlot(occ, sideKey{e.Dst, e.DstHandle.Side}, e.DstHandle.Slot, opts.HandlesPerSide)
	}

	for _, e := range g.Edges {
		if e.SrcNode == nil || e.DstNode == nil || pinned(e) {
			continue
		}

		var srcSide, dstSide archgraph.Side
		if e.SrcNode == e.DstNode {
			// self-loop: exit right, re-enter bottom
			srcSide, dstSide = archgraph.SideRight, archgraph.SideBottom
		} else {
			srcSide, dstSide = chooseSides(e.SrcNode.AbsRect(), e.DstNode.AbsRect(), edgeObstacles(e), opts)
		}
		e.SrcHandle = archgraph.NewHandle(srcSide, 0)
		e.DstHandle = archgraph.NewHandle(dstSide, 0)

		srcKey := sideKey{e.Src, srcSide}
		dstKey := sideKey{e.Dst, dstSide}
		bySide[srcKey] = append(bySide[srcKey], &attachment{edge: e, isSrc: true, far: e.DstNode.Center()})
		bySide[dstKey] = append(bySide[dstKey], &attachment{edge: e, isSrc: false, far: e.SrcNode.Center()})
	}

	keys := make([]sideKey, 0, len(bySide))
	for key := range bySide {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].node != keys[j].node {
			return keys[i].node < keys[j].node
		}
		return keys[i].side < keys[j].side
	})

	for _, key := range keys {
		attachments := bySide[key]
		// Horizontal borders order by the far endpoint's x, vertical borders
		// by its y, so slot order matches the far endpoints' spatial order.
		horizontalBorder := key.side == archgraph.SideTop || key.side == archgraph.SideBottom
		sort.SliceStable(attachments, func(i, j int) bool {
			var a, b float64
			if horizontalBorder {
				a, b = attachments[i].far.X, attachments[j].far.X
			} else {
				a, b = attachments[i].far.Y, attachments[j].far.Y
			}
			if a != b {
				return a < b
			}
			return attachments[i].edge.ID < attachments[j].edge.ID
		})

		slots := occ.slots(key, opts.HandlesPerSide)
		for i, att := range attachments {
			preferred := preferredSlot(i, len(attachments), opts.HandlesPerSide)
			slot := nearestFreeSlot(slots, preferred)
			slots[slot] = true
			if att.isSrc {
				att.edge.SrcHandle.Slot = slot
			} else {
				att.edge.DstHandle.Slot = slot
			}
		}
	}
}

// pinned edges must have arrived with both handles to be honored as such
func pinned(e *archgraph.Edge) bool {
	return e.Pinned && e.SrcHandle != nil && e.DstHandle != nil
}

func markSlot(occ occupancy, key sideKey, slot, perSide int) {
	slots := occ.slots(key, perSide)
	if slot >= 0 && slot < len(slots) {
		slots[slot] = true
	}
}

// preferredSlot spreads k attachments across the interior slots, leaving a
// one-slot margin at each end of the side.
func preferredSlot(i, k, perSide int) int {
	interior := perSide - 2
	if interior < 1 {
		return 0
	}
	slot := 1 + int(math.Round(float64(i+1)*float64(interior)/float64(k+1)))
	if slot > perSide-2 {
		slot = perSide - 2
	}
	return slot
}

// nearestFreeSlot searches outward from preferred, alternating above/below.
// When every slot is taken the preferred one is returned anyway; a doubled-up
// handle is an accepted degradation once a side is oversubscribed.
func nearestFreeSlot(slots []bool, preferred int) int {
	if preferred >= len(slots) {
		preferred = len(slots) - 1
	}
	if !slots[preferred] {
		return preferred
	}
	for d := 1; d < len(slots); d++ {
		if preferred+d < len(slots) && !slots[preferred+d] {
			return preferred + d
		}
		if preferred-d >= 0 && !slots[preferred-d] {
			return preferred - d
		}
	}
	return preferred
}

// edgeObstacles returns the sibling rects the edge must route around: the
// children of the endpoints' lowest common container, minus the branches the
// endpoints themselves live in.
func edgeObstacles(e *archgraph.Edge) []*geo.Rect {
	if e.SrcNode == nil || e.DstNode == nil {
		return nil
	}
	container := commonAncestor(e.SrcNode, e.DstNode)

	var siblings []*archgraph.Node
	if container != nil {
		siblings = container.ChildrenArray
	} else {
		siblings = e.SrcNode.Graph.Roots()
	}

	var rects []*geo.Rect
	for _, sib := range siblings {
		if e.SrcNode.IsDescendantOf(sib) || e.DstNode.IsDescendantOf(sib) {
			continue
		}
		rects = append(rects, sib.AbsRect())
	}
	return rects
}

func commonAncestor(a, b *archgraph.Node) *archgraph.Node {
	ancestors := make(map[*archgraph.Node]struct{})
	for curr := a.Parent; curr != nil; curr = curr.Parent {
		if _, ok := ancestors[curr]; ok {
			break
		}
		ancestors[curr] = struct{}{}
	}
	seen := make(map[*archgraph.Node]struct{})
	for curr := b.Parent; curr != nil; curr = curr.Parent {
		if _, ok := ancestors[curr]; ok {
			return curr
		}
		if _, ok := seen[curr]; ok {
			break
		}
		seen[curr] = struct{}{}
	}
	return nil
}
