// archroute reads a diagram as JSON, runs auto-layout and edge routing, and
// writes the routed diagram back as JSON.
//
//	archroute [flags] [input.json]
//
// With no input path (or "-") the diagram is read from stdin.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"cdr.dev/slog"
	"github.com/spf13/pflag"

	"oss.terrastruct.com/archroute/archgraph"
	"oss.terrastruct.com/archroute/archlayout"
	"oss.terrastruct.com/archroute/archrouter"
	"oss.terrastruct.com/archroute/lib/log"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "archroute: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	flags := pflag.NewFlagSet("archroute", pflag.ContinueOnError)
	doLayout := flags.Bool("layout", true, "auto-position nodes before routing; with --layout=false only edges are recalculated")
	direction := flags.String("direction", "", `layout direction: down, up, right or left (defaults to the input's direction, then down)`)
	nodeSep := flags.Float64("node-sep", archlayout.DefaultOpts.NodeSep, "spacing between sibling nodes")
	rankSep := flags.Float64("rank-sep", archlayout.DefaultOpts.RankSep, "spacing between layers")
	debug := flags.Bool("debug", false, "write routing trace events to stderr")
	if err := flags.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	ctx := log.Stderr(context.Background(), level)

	if fileArgs := flags.Args(); len(fileArgs) > 0 && fileArgs[0] != "-" {
		f, err := os.Open(fileArgs[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	g, err := archgraph.Decode(ctx, in)
	if err != nil {
		return err
	}

	if *doLayout {
		opts := &archlayout.Opts{
			Direction: *direction,
			NodeSep:   *nodeSep,
			RankSep:   *rankSep,
		}
		if err := archlayout.Layout(ctx, g, nil, opts); err != nil {
			return err
		}
	} else {
		if *direction != "" {
			g.Direction = *direction
		}
		archrouter.Refresh(ctx, g, nil)
	}

	return g.Encode(out)
}
