package mindex

import (
	"log/slog"

	"github.com/hupe1980/mindex/resource"
)

const (
	// DefaultMaxLevel is the default depth of the cluster hierarchy.
	DefaultMaxLevel = 2

	// DefaultDegree is the default B+Tree degree.
	DefaultDegree = 32

	// DefaultLeafObjectsLimit is the default leaf size of dynamic clustering.
	DefaultLeafObjectsLimit = 64
)

type options struct {
	maximumDistance  float64
	precomputed      bool
	dynamic          bool
	leafObjectsLimit int
	workers          int
	granularity      int
	rc               *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Index constructor behavior.
type Option func(*options)

// WithMaximumDistance sets a precomputed maximum pairwise distance of the corpus,
// which skips the quadratic computation during Build. It must be positive.
//
// A value below the true maximum keeps queries exact but weakens pruning.
func WithMaximumDistance(d float64) Option {
	return func(o *options) {
		o.maximumDistance = d
		o.precomputed = true
	}
}

// WithDynamicClusters selects dynamic clustering: leaves below the max level are
// split once they would hold more than limit objects.
// Without this option every object is routed down to the max level.
func WithDynamicClusters(limit int) Option {
	return func(o *options) {
		o.dynamic = true
		o.leafObjectsLimit = limit
	}
}

// WithWorkers bounds the goroutines of the parallel build phases.
// Zero uses the available hardware parallelism.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithGranularity sets the work per chunk of the parallel build phases:
// pair evaluations for the maximum distance, objects for the pivot table.
func WithGranularity(n int) Option {
	return func(o *options) {
		o.granularity = n
	}
}

// WithResourceController shares worker slots, memory and the distance evaluation
// rate between indexes. Pivot table memory is reserved on the controller during
// Build and returned by Close.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &mindex.BasicMetricsCollector{}
//	ix, _ := mindex.New(2, 32, pivots, fn, mindex.WithMetricsCollector(metrics))
//	// ... build and query ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := mindex.NewJSONLogger(slog.LevelInfo)
//	ix, _ := mindex.New(2, 32, pivots, fn, mindex.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
