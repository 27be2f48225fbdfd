package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/hupe1980/mindex"
	"github.com/hupe1980/mindex/config"
	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/pivot"
	"github.com/hupe1980/mindex/prommetrics"
	"github.com/hupe1980/mindex/resource"
	"github.com/hupe1980/mindex/testutil"
	"github.com/hupe1980/mindex/voronoi"
)

type app struct {
	flags    flags
	cfg      config.Config
	logger   *mindex.Logger
	registry *prometheus.Registry
	metrics  *prommetrics.Collector
	fn       distance.Func[[]float64]
	vectors  [][]float64
	pivots   []pivot.Pivot[[]float64]
}

func newApp(ctx context.Context, f flags, stderr io.Writer) (*app, error) {
	var envFiles []string
	if f.env != "" {
		envFiles = append(envFiles, f.env)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Logger(stderr)
	if err != nil {
		return nil, err
	}

	fn, err := cfg.DistanceFunc()
	if err != nil {
		return nil, err
	}

	vectors, err := loadVectors(f, cfg.Seed)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("corpus is empty")
	}

	pivots, err := selectPivots(ctx, cfg, vectors, fn)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()

	return &app{
		flags:    f,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  prommetrics.New("mindex", registry),
		fn:       fn,
		vectors:  vectors,
		pivots:   pivots,
	}, nil
}

func selectPivots(ctx context.Context, cfg config.Config, vectors [][]float64, fn distance.Func[[]float64]) ([]pivot.Pivot[[]float64], error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.PivotSelection == "kmeans" {
		return pivot.SelectKMeans(ctx, vectors, cfg.Pivots, fn, pivot.DefaultKMeansIterations, rng)
	}
	return pivot.Select(vectors, cfg.Pivots, rng), nil
}

func loadVectors(f flags, seed int64) ([][]float64, error) {
	switch {
	case f.data != "" && f.generate > 0:
		return nil, errors.New("-data and -generate are mutually exclusive")
	case f.generate > 0:
		if f.dim < 1 {
			return nil, fmt.Errorf("invalid dimension %d", f.dim)
		}
		return testutil.NewRNG(seed).UniformVectors(f.generate, f.dim), nil
	case f.data != "":
		file, err := os.Open(f.data)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return readVectors(file)
	}
	return nil, errors.New("one of -data or -generate is required")
}

func (a *app) build(ctx context.Context) (*mindex.Index[[]float64], error) {
	ix, err := mindex.New(a.cfg.MaxLevel, a.cfg.Degree, a.pivots, a.fn, a.cfg.Options(a.logger, a.metrics)...)
	if err != nil {
		return nil, err
	}
	if err := ix.AddAll(a.vectors); err != nil {
		return nil, err
	}
	if err := ix.Build(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

func (a *app) query(ctx context.Context, w io.Writer) error {
	q, err := parseVector(a.flags.query)
	if err != nil {
		return fmt.Errorf("-query: %w", err)
	}
	if len(q) != len(a.vectors[0]) {
		return fmt.Errorf("-query: %w: got %d, want %d", errDimension, len(q), len(a.vectors[0]))
	}

	ix, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()

	results, stats, err := ix.RangeQueryWithStats(ctx, q, a.flags.radius)
	if err != nil {
		return err
	}

	for _, v := range results {
		fmt.Fprintln(w, formatVector(v))
	}
	fmt.Fprintf(w, "# results=%d candidates=%d distances=%d pruned=%d objects=%d\n",
		stats.Results, stats.Candidates, stats.DistanceComputations, stats.PrunedClusters(), len(a.vectors))
	return nil
}

func (a *app) graph(ctx context.Context, w io.Writer) error {
	ix, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer ix.Close()

	var dot string
	switch a.flags.kind {
	case "clusters":
		dot, err = ix.ClusterGraph()
	case "btree":
		dot, err = ix.TreeGraph()
	default:
		return fmt.Errorf("-kind: unknown graph kind %q", a.flags.kind)
	}
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, dot)
	return err
}

func (a *app) partition(ctx context.Context, w io.Writer) error {
	set, err := pivot.NewSet(a.pivots)
	if err != nil {
		return err
	}

	cells, err := voronoi.Build(ctx, a.flags.level, set, a.vectors, a.fn, func(o *voronoi.Options) {
		o.Workers = a.cfg.Workers
		if rc, ok := a.cfg.ResourceConfig(); ok {
			o.Controller = resource.NewController(rc)
		}
	})
	if err != nil {
		return err
	}
	if err := voronoi.NormalizeAll(cells); err != nil {
		return err
	}

	voronoi.Walk(cells, func(c *voronoi.Cell[[]float64]) bool {
		if c.Len() == 0 {
			return false
		}
		fmt.Fprintf(w, "%s%s base=%d objects=%d\n", strings.Repeat("  ", c.Level()-1), c.Path(), c.BasePivot().ID, c.Len())
		return true
	})
	return nil
}

func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return strings.Join(parts, ",")
}
