// This file implements fluent builder APIs for creating and configuring indexes.
// Builders are immutable - each method returns a new builder with the updated configuration.

package mindex

import (
	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/pivot"
	"github.com/hupe1980/mindex/resource"
)

// config is the configuration shared by all builders.
type config struct {
	maxLevel        int
	degree          int
	maximumDistance *float64
	workers         int
	granularity     int
	rc              *resource.Controller
	logger          *Logger
	metrics         MetricsCollector
}

func (c config) options() []Option {
	var opts []Option
	if c.maximumDistance != nil {
		opts = append(opts, WithMaximumDistance(*c.maximumDistance))
	}
	if c.workers > 0 {
		opts = append(opts, WithWorkers(c.workers))
	}
	if c.granularity > 0 {
		opts = append(opts, WithGranularity(c.granularity))
	}
	if c.rc != nil {
		opts = append(opts, WithResourceController(c.rc))
	}
	if c.logger != nil {
		opts = append(opts, WithLogger(c.logger))
	}
	if c.metrics != nil {
		opts = append(opts, WithMetricsCollector(c.metrics))
	}
	return opts
}

func defaultConfig(pivots int) config {
	return config{
		maxLevel: min(DefaultMaxLevel, max(pivots, 1)),
		degree:   DefaultDegree,
	}
}

// =============================================================================
// Static Builder (Immutable)
// =============================================================================

// Static creates a builder for an index whose objects are all routed down to
// the max cluster level.
//
// Example:
//
//	ix, err := mindex.Static(pivots, distance.Euclidean).
//	    MaxLevel(3).
//	    Degree(64).
//	    Build()
func Static[D any](pivots []pivot.Pivot[D], fn distance.Func[D]) StaticBuilder[D] {
	return StaticBuilder[D]{
		pivots: pivots,
		fn:     fn,
		cfg:    defaultConfig(len(pivots)),
	}
}

// StaticBuilder is an immutable fluent builder for statically clustered indexes.
type StaticBuilder[D any] struct {
	pivots []pivot.Pivot[D]
	fn     distance.Func[D]
	cfg    config
}

// MaxLevel sets the depth of the cluster hierarchy, in [1, len(pivots)].
// Default: 2 (or 1 with a single pivot).
func (b StaticBuilder[D]) MaxLevel(n int) StaticBuilder[D] {
	b.cfg.maxLevel = n
	return b
}

// Degree sets the B+Tree degree. Default: 32.
func (b StaticBuilder[D]) Degree(t int) StaticBuilder[D] {
	b.cfg.degree = t
	return b
}

// MaximumDistance sets a precomputed maximum pairwise distance.
func (b StaticBuilder[D]) MaximumDistance(d float64) StaticBuilder[D] {
	b.cfg.maximumDistance = &d
	return b
}

// Workers bounds the goroutines of the parallel build phases.
func (b StaticBuilder[D]) Workers(n int) StaticBuilder[D] {
	b.cfg.workers = n
	return b
}

// Granularity sets the work per chunk of the parallel build phases.
func (b StaticBuilder[D]) Granularity(n int) StaticBuilder[D] {
	b.cfg.granularity = n
	return b
}

// ResourceController shares resource budgets with other indexes.
func (b StaticBuilder[D]) ResourceController(rc *resource.Controller) StaticBuilder[D] {
	b.cfg.rc = rc
	return b
}

// Logger sets the structured logger for operation tracing.
func (b StaticBuilder[D]) Logger(l *Logger) StaticBuilder[D] {
	b.cfg.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b StaticBuilder[D]) Metrics(mc MetricsCollector) StaticBuilder[D] {
	b.cfg.metrics = mc
	return b
}

// Build creates the index.
func (b StaticBuilder[D]) Build() (*Index[D], error) {
	return New(b.cfg.maxLevel, b.cfg.degree, b.pivots, b.fn, b.cfg.options()...)
}

// =============================================================================
// Dynamic Builder (Immutable)
// =============================================================================

// Dynamic creates a builder for an index that splits leaves only once they
// exceed a size limit, keeping sparse regions shallow.
//
// Example:
//
//	ix, err := mindex.Dynamic(pivots, distance.Euclidean).
//	    MaxLevel(4).
//	    LeafObjectsLimit(128).
//	    Build()
func Dynamic[D any](pivots []pivot.Pivot[D], fn distance.Func[D]) DynamicBuilder[D] {
	return DynamicBuilder[D]{
		pivots:           pivots,
		fn:               fn,
		cfg:              defaultConfig(len(pivots)),
		leafObjectsLimit: DefaultLeafObjectsLimit,
	}
}

// DynamicBuilder is an immutable fluent builder for dynamically clustered indexes.
type DynamicBuilder[D any] struct {
	pivots           []pivot.Pivot[D]
	fn               distance.Func[D]
	cfg              config
	leafObjectsLimit int
}

// MaxLevel sets the maximum depth of the cluster hierarchy, in [1, len(pivots)].
// Default: 2 (or 1 with a single pivot).
func (b DynamicBuilder[D]) MaxLevel(n int) DynamicBuilder[D] {
	b.cfg.maxLevel = n
	return b
}

// LeafObjectsLimit sets the number of objects a leaf above the max level may
// hold before it is split. Default: 64.
func (b DynamicBuilder[D]) LeafObjectsLimit(n int) DynamicBuilder[D] {
	b.leafObjectsLimit = n
	return b
}

// Degree sets the B+Tree degree. Default: 32.
func (b DynamicBuilder[D]) Degree(t int) DynamicBuilder[D] {
	b.cfg.degree = t
	return b
}

// MaximumDistance sets a precomputed maximum pairwise distance.
func (b DynamicBuilder[D]) MaximumDistance(d float64) DynamicBuilder[D] {
	b.cfg.maximumDistance = &d
	return b
}

// Workers bounds the goroutines of the parallel build phases.
func (b DynamicBuilder[D]) Workers(n int) DynamicBuilder[D] {
	b.cfg.workers = n
	return b
}

// Granularity sets the work per chunk of the parallel build phases.
func (b DynamicBuilder[D]) Granularity(n int) DynamicBuilder[D] {
	b.cfg.granularity = n
	return b
}

// ResourceController shares resource budgets with other indexes.
func (b DynamicBuilder[D]) ResourceController(rc *resource.Controller) DynamicBuilder[D] {
	b.cfg.rc = rc
	return b
}

// Logger sets the structured logger for operation tracing.
func (b DynamicBuilder[D]) Logger(l *Logger) DynamicBuilder[D] {
	b.cfg.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b DynamicBuilder[D]) Metrics(mc MetricsCollector) DynamicBuilder[D] {
	b.cfg.metrics = mc
	return b
}

// Build creates the index.
func (b DynamicBuilder[D]) Build() (*Index[D], error) {
	opts := append(b.cfg.options(), WithDynamicClusters(b.leafObjectsLimit))
	return New(b.cfg.maxLevel, b.cfg.degree, b.pivots, b.fn, opts...)
}
