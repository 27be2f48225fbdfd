// Command mindex builds an M-Index over a vector corpus and runs range queries,
// graph dumps and Voronoi partitions against it.
//
// Usage:
//
//	mindex query -data corpus.csv -query 0.1,0.2 -radius 0.05
//	mindex graph -data corpus.csv -kind btree
//	mindex partition -generate 1000 -dim 8 -level 2
//
// Index settings are read from MINDEX_* environment variables and an optional
// .env file (see package config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
)

const usage = `usage: mindex <command> [flags]

commands:
  query      run a range query
  graph      print the cluster hierarchy or the B+Tree in DOT format
  partition  print a multi-level Voronoi partition
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "mindex:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f flags
	f.register(fs)

	switch cmd {
	case "query", "graph", "partition":
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	app, err := newApp(ctx, f, stderr)
	if err != nil {
		return err
	}

	switch cmd {
	case "query":
		err = app.query(ctx, stdout)
	case "graph":
		err = app.graph(ctx, stdout)
	case "partition":
		err = app.partition(ctx, stdout)
	}
	if err != nil {
		return err
	}

	if f.metrics {
		return app.writeMetrics(stdout)
	}
	return nil
}

type flags struct {
	data     string
	env      string
	generate int
	dim      int
	query    string
	radius   float64
	kind     string
	level    int
	metrics  bool
}

func (f *flags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.data, "data", "", "CSV file with one vector per line")
	fs.StringVar(&f.env, "env", "", ".env file with MINDEX_* settings")
	fs.IntVar(&f.generate, "generate", 0, "generate this many random vectors instead of reading -data")
	fs.IntVar(&f.dim, "dim", 2, "dimension of generated vectors")
	fs.StringVar(&f.query, "query", "", "comma separated query vector")
	fs.Float64Var(&f.radius, "radius", 0, "query radius")
	fs.StringVar(&f.kind, "kind", "clusters", "graph kind: clusters or btree")
	fs.IntVar(&f.level, "level", 1, "depth of the Voronoi partition")
	fs.BoolVar(&f.metrics, "metrics", false, "print Prometheus metrics after the command")
}
