// Package layered is the built-in core layout engine: a Sugiyama-style
// layered layout for a single nesting level. The hierarchical driver in
// archlayout feeds it one container's children at a time, so it never sees
// parent references.
package layered

import (
	"context"
	"math"
	"sort"

	"oss.terrastruct.com/xdefer"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/lib/geo"
)

type ConfigurableOpts struct {
	// NodeSep is the spacing between adjacent nodes in a layer.
	NodeSep float64
	// RankSep is the spacing between layers.
	RankSep float64
}

var DefaultOpts = ConfigurableOpts{
	NodeSep: 80,
	RankSep: 100,
}

const orderingSweeps = 4

func DefaultLayout(ctx context.Context, g *archgraph.Graph) error {
	return Layout(ctx, g, nil)
}

// Layout positions g's nodes in layers along the graph's direction.
// Computation happens in down-space (layers stack top to bottom); the other
// three directions are transforms of the down-space result.
func Layout(ctx context.Context, g *archgraph.Graph, opts *ConfigurableOpts) (err error) {
	defer xdefer.Errorf(&err, "failed layered layout")
	if opts == nil {
		opts = &DefaultOpts
	}
	if len(g.Nodes) <= 1 {
		if len(g.Nodes) == 1 {
			g.Nodes[0].Pos = geo.NewPoint(0, 0)
		}
		return nil
	}

	transposed := g.Direction == archgraph.DirectionRight || g.Direction == archgraph.DirectionLeft

	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}

	// node dimensions in down-space
	width := make([]float64, len(g.Nodes))
	height := make([]float64, len(g.Nodes))
	for i, n := range g.Nodes {
		w, h := n.Size()
		if transposed {
			w, h = h, w
		}
		width[i], height[i] = w, h
	}

	succ := make([][]int, len(g.Nodes))
	pred := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		si, ok1 := idx[e.Src]
		di, ok2 := idx[e.Dst]
		if !ok1 || !ok2 || si == di {
			continue
		}
		succ[si] = append(succ[si], di)
		pred[di] = append(pred[di], si)
	}
	breakCycles(succ, pred)

	layerOf := assignLayers(succ, pred)
	layers := buildLayers(layerOf)
	orderLayers(layers, layerOf, succ, pred)

	// coordinates in down-space
	layerHeights := make([]float64, len(layers))
	layerWidths := make([]float64, len(layers))
	for li, layer := range layers {
		var w float64
		for i, ni := range layer {
			if i > 0 {
				w += opts.NodeSep
			}
			w += width[ni]
			layerHeights[li] = math.Max(layerHeights[li], height[ni])
		}
		layerWidths[li] = w
	}
	maxWidth := 0.
	totalHeight := 0.
	for li := range layers {
		maxWidth = math.Max(maxWidth, layerWidths[li])
		totalHeight += layerHeights[li]
		if li > 0 {
			totalHeight += opts.RankSep
		}
	}

	x := make([]float64, len(g.Nodes))
	y := make([]float64, len(g.Nodes))
	layerTop := 0.
	for li, layer := range layers {
		cursor := (maxWidth - layerWidths[li]) / 2
		for _, ni := range layer {
			x[ni] = cursor
			y[ni] = layerTop + (layerHeights[li]-height[ni])/2
			cursor += width[ni] + opts.NodeSep
		}
		layerTop += layerHeights[li] + opts.RankSep
	}

	for i, n := range g.Nodes {
		w, h := n.Size()
		switch g.Direction {
		case archgraph.DirectionUp:
			n.Pos = geo.NewPoint(x[i], totalHeight-y[i]-h)
		case archgraph.DirectionRight:
			n.Pos = geo.NewPoint(y[i], x[i])
		case archgraph.DirectionLeft:
			n.Pos = geo.NewPoint(totalHeight-y[i]-w, x[i])
		case archgraph.DirectionDown:
			fallthrough
		default:
			n.Pos = geo.NewPoint(x[i], y[i])
		}
	}
	return nil
}

// breakCycles drops back edges found by DFS in input order so layering
// terminates. The drop only affects layout, not the diagram's edges.
func breakCycles(succ, pred [][]int) {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(succ))

	var dfs func(int)
	dfs = func(u int) {
		state[u] = onStack
		kept := succ[u][:0]
		for _, v := range succ[u] {
			if state[v] == onStack {
				// back edge, drop it from both adjacency views
				pred[v] = removeFirst(pred[v], u)
				continue
			}
			kept = append(kept, v)
			if state[v] == unvisited {
				dfs(v)
			}
		}
		succ[u] = kept
		state[u] = done
	}
	for u := range succ {
		if state[u] == unvisited {
			dfs(u)
		}
	}
}

func removeFirst(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// assignLayers computes longest-path layers with Kahn's algorithm: every
// node lands one past its deepest predecessor, sources land on layer 0.
func assignLayers(succ, pred [][]int) []int {
	layer := make([]int, len(succ))
	indeg := make([]int, len(succ))
	var queue []int
	for i := range succ {
		indeg[i] = len(pred[i])
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range succ[u] {
			if layer[u]+1 > layer[v] {
				layer[v] = layer[u] + 1
			}
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	return layer
}

func buildLayers(layerOf []int) [][]int {
	maxLayer := 0
	for _, l := range layerOf {
		if l > maxLayer {
			maxLayer = l
		}
	}
	layers := make([][]int, maxLayer+1)
	for i, l := range layerOf {
		layers[l] = append(layers[l], i)
	}
	return layers
}

// orderLayers runs alternating barycenter sweeps to reduce crossings.
// Sorts are stable and nodes without neighbors keep their position, so the
// result is deterministic.
func orderLayers(layers [][]int, layerOf []int, succ, pred [][]int) {
	pos := make([]int, len(layerOf))
	updatePos := func() {
		for _, layer := range layers {
			for p, ni := range layer {
				pos[ni] = p
			}
		}
	}
	updatePos()

	barycenter := func(ni int, neighbors []int, fromLayer int) (float64, bool) {
		sum, count := 0., 0
		for _, m := range neighbors {
			if layerOf[m] == fromLayer {
				sum += float64(pos[m])
				count++
			}
		}
		if count == 0 {
			return 0, false
		}
		return sum / float64(count), true
	}

	for sweep := 0; sweep < orderingSweeps; sweep++ {
		if sweep%2 == 0 {
			for li := 1; li < len(layers); li++ {
				sortLayer(layers[li], pos, func(ni int) (float64, bool) {
					return barycenter(ni, pred[ni], li-1)
				})
				updatePos()
			}
		} else {
			for li := len(layers) - 2; li >= 0; li-- {
				sortLayer(layers[li], pos, func(ni int) (float64, bool) {
					return barycenter(ni, succ[ni], li+1)
				})
				updatePos()
			}
		}
	}
}

func sortLayer(layer []int, pos []int, weight func(int) (float64, bool)) {
	keys := make(map[int]float64, len(layer))
	for _, ni := range layer {
		if w, ok := weight(ni); ok {
			keys[ni] = w
		} else {
			keys[ni] = float64(pos[ni])
		}
	}
	sort.SliceStable(layer, func(i, j int) bool {
		return keys[layer[i]] < keys[layer[j]]
	})
}
