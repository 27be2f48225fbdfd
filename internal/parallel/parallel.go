// Package parallel runs independent chunk tasks on a bounded worker pool and
// hands their results back in chunk order for a single collector to fold.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mindex/resource"
)

// DefaultGranularity is the amount of work (pair evaluations or objects) per chunk.
const DefaultGranularity = 10000

// Workers returns n when positive, otherwise the available hardware parallelism.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// Map runs task for every chunk in [0, chunks) on at most workers goroutines and
// returns the per-chunk results indexed by chunk.
//
// The first failing task cancels the context passed to the remaining tasks and
// its error is returned; partial results are never returned. When rc is not nil,
// every task also holds one of its shared worker slots while running.
func Map[R any](ctx context.Context, workers, chunks int, rc *resource.Controller, task func(ctx context.Context, chunk int) (R, error)) ([]R, error) {
	if chunks <= 0 {
		return nil, ctx.Err()
	}

	results := make([]R, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))

	for c := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer rc.ReleaseWorker()

			r, err := task(gctx, c)
			if err != nil {
				return err
			}
			results[c] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The loop may have stopped early because the parent context was canceled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Chunks returns how many chunks of size granularity cover n items.
func Chunks(n, granularity int) int {
	if n <= 0 {
		return 0
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return (n + granularity - 1) / granularity
}
