package pivot

import (
	"context"

	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/internal/parallel"
	"github.com/hupe1980/mindex/resource"
)

// Options configures the parallel calculations of this package.
type Options struct {
	// Workers bounds the number of concurrent chunk tasks.
	// Zero uses the available hardware parallelism.
	Workers int

	// Granularity is the amount of work per chunk: pair evaluations for
	// MaximumDistance, objects for Calculate.
	Granularity int

	// Controller shares worker slots, memory and distance-rate budgets with other builds.
	Controller *resource.Controller
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	Workers:     0,
	Granularity: parallel.DefaultGranularity,
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Granularity <= 0 {
		opts.Granularity = parallel.DefaultGranularity
	}
	return opts
}

type pairChunk struct {
	i, jStart int
}

// MaximumDistance returns the largest distance over all unordered pairs of objects,
// or 0 for fewer than two objects.
//
// The pair workload is split into chunks of Granularity evaluations, keyed by
// (i, jStart), which run on a bounded worker pool. Any failing chunk aborts the
// whole calculation.
func MaximumDistance[D any](ctx context.Context, objects []D, fn distance.Func[D], optFns ...func(o *Options)) (float64, error) {
	n := len(objects)
	if n < 2 {
		return 0, nil
	}

	opts := buildOptions(optFns)
	fn = resource.LimitDistance(ctx, opts.Controller, distance.Checked(fn))

	var chunks []pairChunk
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j += opts.Granularity {
			chunks = append(chunks, pairChunk{i: i, jStart: j})
		}
	}

	maxima, err := parallel.Map(ctx, opts.Workers, len(chunks), opts.Controller, func(ctx context.Context, c int) (float64, error) {
		chunk := chunks[c]
		a := objects[chunk.i]
		end := min(chunk.jStart+opts.Granularity, n)

		var local float64
		for j := chunk.jStart; j < end; j++ {
			d, err := fn(a, objects[j])
			if err != nil {
				return 0, err
			}
			local = max(local, d)
		}
		return local, nil
	})
	if err != nil {
		return 0, err
	}

	var maximum float64
	for _, m := range maxima {
		maximum = max(maximum, m)
	}
	return maximum, nil
}
