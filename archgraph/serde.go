package archgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"oss.terrastruct.com/xdefer"
)

// Decode reads a diagram from JSON and resolves its hierarchy. Edges whose
// endpoints don't exist are rejected: unlike a dangling parent reference,
// there is no sensible degraded rendering for a dangling edge.
func Decode(ctx context.Context, r io.Reader) (g *Graph, err error) {
	defer xdefer.Errorf(&err, "failed to decode diagram")

	g = NewGraph()
	dec := json.NewDecoder(r)
	if err := dec.Decode(g); err != nil {
		return nil, err
	}
	g.BuildHierarchy(ctx)
	for _, e := range g.Edges {
		if e.SrcNode == nil {
			return nil, fmt.Errorf("edge %q references unknown source %q", e.ID, e.Src)
		}
		if e.DstNode == nil {
			return nil, fmt.Errorf("edge %q references unknown target %q", e.ID, e.Dst)
		}
	}
	return g, nil
}

func (g *Graph) Encode(w io.Writer) (err error) {
	defer xdefer.Errorf(&err, "failed to encode diagram")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
