package mindex_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mindex"
	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/pivot"
	"github.com/hupe1980/mindex/resource"
	"github.com/hupe1980/mindex/testutil"
)

func pointPivots(points ...distance.Point) []pivot.Pivot[distance.Point] {
	pivots := make([]pivot.Pivot[distance.Point], len(points))
	for i, p := range points {
		pivots[i] = pivot.New(uint32(i), p)
	}
	return pivots
}

func buildIndex[D any](t *testing.T, ix *mindex.Index[D], objects []D) *mindex.Index[D] {
	t.Helper()

	require.NoError(t, ix.AddAll(objects))
	require.NoError(t, ix.Build(context.Background()))
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func assertExact[D any](t *testing.T, ix *mindex.Index[D], objects []D, fn distance.Func[D], q D, r float64) {
	t.Helper()

	want := testutil.ExactRange(q, objects, r, fn)
	got, err := ix.RangeQueryIDs(context.Background(), q, r)
	require.NoError(t, err)

	if len(want) == 0 {
		assert.Empty(t, got, "query %v radius %v", q, r)
		return
	}
	assert.Equal(t, want, got, "query %v radius %v", q, r)
}

func TestRangeQuery_TwoPivots(t *testing.T) {
	a, b := distance.Point{X: 0, Y: 0}, distance.Point{X: 1, Y: 1}

	ix, err := mindex.New(2, 2, pointPivots(a, b), distance.PointDistance)
	require.NoError(t, err)

	require.NoError(t, ix.Add(b))
	require.NoError(t, ix.Add(a))
	require.NoError(t, ix.Build(context.Background()))

	results, err := ix.RangeQuery(context.Background(), b, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []distance.Point{b}, results)
}

func TestRangeQuery_SmallCorpus(t *testing.T) {
	pivots := pointPivots(distance.Point{X: 0, Y: 0}, distance.Point{X: 1, Y: 0}, distance.Point{X: 0, Y: 1})
	points := []distance.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.2}, {X: 0.2, Y: 0.8}, {X: 0.5, Y: 0.5}, {X: 1, Y: 1}}

	ix, err := mindex.New(3, 2, pivots, distance.PointDistance)
	require.NoError(t, err)
	buildIndex(t, ix, points)

	for _, q := range append(points, distance.Point{X: 0.4, Y: 0.3}, distance.Point{X: 3, Y: 3}) {
		assertExact(t, ix, points, distance.PointDistance, q, 0.5)
	}
}

func TestRangeQuery_MatchesBruteForce(t *testing.T) {
	tests := []struct {
		name     string
		pivots   int
		points   int
		maxLevel int
		degree   int
		dynamic  int
		grid     bool
	}{
		{"static level 1", 4, 300, 1, 2, 0, false},
		{"static level 2", 6, 400, 2, 3, 0, false},
		{"static full depth", 4, 250, 4, 4, 0, false},
		{"dynamic small leaves", 5, 400, 3, 2, 4, false},
		{"dynamic level 1", 3, 200, 1, 8, 2, false},
		{"dynamic large leaves", 8, 500, 3, 16, 50, false},
		{"duplicates static", 4, 300, 3, 2, 0, true},
		{"duplicates dynamic", 4, 300, 3, 2, 3, true},
		{"single pivot", 1, 100, 1, 2, 0, false},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rng := testutil.NewRNG(int64(4711 + i))

			var points []distance.Point
			if tc.grid {
				points = rng.GridPoints(tc.points, 6)
			} else {
				points = rng.Points(tc.points, 0, 10)
			}
			pivots := pivot.Select(points, tc.pivots, rng.Rand())

			opts := []mindex.Option{mindex.WithWorkers(3), mindex.WithGranularity(37)}
			if tc.dynamic > 0 {
				opts = append(opts, mindex.WithDynamicClusters(tc.dynamic))
			}

			ix, err := mindex.New(tc.maxLevel, tc.degree, pivots, distance.PointDistance, opts...)
			require.NoError(t, err)
			buildIndex(t, ix, points)

			queries := append(rng.Points(20, -2, 12), points[:10]...)
			for _, q := range queries {
				for _, r := range []float64{0, 0.3, 1, 2.5, 8, 20} {
					assertExact(t, ix, points, distance.PointDistance, q, r)
				}
			}
		})
	}
}

func TestRangeQuery_Vectors(t *testing.T) {
	for _, metric := range []distance.Metric{distance.MetricL2, distance.MetricL1, distance.MetricChebyshev} {
		t.Run(metric.String(), func(t *testing.T) {
			fn, err := distance.Provider(metric)
			require.NoError(t, err)

			rng := testutil.NewRNG(42)
			vectors := rng.ClusteredVectors(400, 4, 6, 0.05)
			pivots := pivot.Select(vectors, 6, rng.Rand())

			ix, err := mindex.Dynamic(pivots, fn).MaxLevel(3).LeafObjectsLimit(16).Degree(8).Build()
			require.NoError(t, err)
			buildIndex(t, ix, vectors)

			for _, q := range rng.UniformVectors(15, 4) {
				for _, r := range []float64{0.05, 0.2, 0.6} {
					assertExact(t, ix, vectors, fn, q, r)
				}
			}
		})
	}
}

func TestRangeQuery_PrecomputedMaximumDistance(t *testing.T) {
	rng := testutil.NewRNG(7)
	points := rng.Points(200, 0, 10)
	pivots := pivot.Select(points, 5, rng.Rand())
	exact := testutil.ExactMaximumDistance(points, distance.PointDistance)

	// Too small a maximum distance pushes normalized distances above 1; queries
	// stay exact.
	for _, maxDist := range []float64{exact, exact * 3, exact / 4, 0.01} {
		t.Run(fmt.Sprintf("%.2f", maxDist), func(t *testing.T) {
			ix, err := mindex.Static(pivots, distance.PointDistance).MaxLevel(3).MaximumDistance(maxDist).Build()
			require.NoError(t, err)
			buildIndex(t, ix, points)
			assert.Equal(t, maxDist, ix.MaximumDistance())

			for _, q := range rng.Points(10, 0, 10) {
				for _, r := range []float64{0.5, 2, 5} {
					assertExact(t, ix, points, distance.PointDistance, q, r)
				}
			}
		})
	}
}

func TestRangeQuery_DistantPivot(t *testing.T) {
	// A pivot far outside the corpus makes nearest pivot distances exceed the
	// maximum distance.
	pivots := pointPivots(distance.Point{X: 100, Y: 100}, distance.Point{X: -50, Y: 0})
	points := testutil.NewRNG(3).Points(100, 0, 1)

	ix, err := mindex.New(2, 3, pivots, distance.PointDistance)
	require.NoError(t, err)
	buildIndex(t, ix, points)

	for _, q := range points[:20] {
		for _, r := range []float64{0, 0.1, 0.4} {
			assertExact(t, ix, points, distance.PointDistance, q, r)
		}
	}
}

func TestRangeQuery_Scalars(t *testing.T) {
	values := testutil.NewRNG(11).Floats(300, -100, 100)
	pivots := []pivot.Pivot[float64]{pivot.New(7, -50.0), pivot.New(3, 0.0), pivot.New(5, 50.0)}

	ix, err := mindex.New(2, 4, pivots, distance.Scalar)
	require.NoError(t, err)
	buildIndex(t, ix, values)

	for _, q := range []float64{-120, -50, -1, 0, 33.3, 99} {
		for _, r := range []float64{0, 1, 10, 60} {
			assertExact(t, ix, values, distance.Scalar, q, r)
		}
	}
}

func TestRangeQuery_Empty(t *testing.T) {
	ix, err := mindex.New(1, 2, pointPivots(distance.Point{}), distance.PointDistance)
	require.NoError(t, err)
	require.NoError(t, ix.Build(context.Background()))

	results, err := ix.RangeQuery(context.Background(), distance.Point{}, 100)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1.0, ix.MaximumDistance())
}

func TestRangeQuery_Pruning(t *testing.T) {
	rng := testutil.NewRNG(99)
	vectors := rng.ClusteredVectors(2000, 3, 8, 0.02)
	pivots := pivot.Select(vectors, 8, rng.Rand())

	ix, err := mindex.New(2, 16, pivots, distance.Euclidean)
	require.NoError(t, err)
	buildIndex(t, ix, vectors)

	results, stats, err := ix.RangeQueryWithStats(context.Background(), vectors[0], 0.01)
	require.NoError(t, err)

	assert.NotEmpty(t, results)
	assert.Greater(t, stats.PrunedClusters(), 0)
	assert.Less(t, stats.DistanceComputations, len(vectors)/2)
	assert.Equal(t, len(results), stats.Results)
	assert.LessOrEqual(t, stats.DistanceComputations+stats.FilteredByPivots, stats.Candidates)
	assert.LessOrEqual(t, stats.Candidates, stats.ScannedEntries)
}

func TestRangeQuery_Concurrent(t *testing.T) {
	rng := testutil.NewRNG(5)
	points := rng.Points(500, 0, 10)
	pivots := pivot.Select(points, 6, rng.Rand())

	ix, err := mindex.Dynamic(pivots, distance.PointDistance).MaxLevel(3).LeafObjectsLimit(8).Build()
	require.NoError(t, err)
	buildIndex(t, ix, points)

	queries := rng.Points(64, 0, 10)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := g; i < len(queries); i += 8 {
				want := testutil.ExactRange(queries[i], points, 1.5, distance.PointDistance)
				got, err := ix.RangeQueryIDs(context.Background(), queries[i], 1.5)
				assert.NoError(t, err)
				assert.Equal(t, len(want), len(got))
			}
		}()
	}
	wg.Wait()
}

func TestNew_Validation(t *testing.T) {
	pivots := pointPivots(distance.Point{X: 0}, distance.Point{X: 1}, distance.Point{X: 2})

	tests := []struct {
		name string
		new  func() (*mindex.Index[distance.Point], error)
	}{
		{"no pivots", func() (*mindex.Index[distance.Point], error) {
			return mindex.New[distance.Point](1, 2, nil, distance.PointDistance)
		}},
		{"duplicate pivots", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(1, 2, append(pivots, pivots[0]), distance.PointDistance)
		}},
		{"level zero", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(0, 2, pivots, distance.PointDistance)
		}},
		{"level above pivots", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(4, 2, pivots, distance.PointDistance)
		}},
		{"degree below two", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(2, 1, pivots, distance.PointDistance)
		}},
		{"nil distance", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(2, 2, pivots, nil)
		}},
		{"zero maximum distance", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(2, 2, pivots, distance.PointDistance, mindex.WithMaximumDistance(0))
		}},
		{"NaN maximum distance", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(2, 2, pivots, distance.PointDistance, mindex.WithMaximumDistance(math.NaN()))
		}},
		{"zero leaf limit", func() (*mindex.Index[distance.Point], error) {
			return mindex.New(2, 2, pivots, distance.PointDistance, mindex.WithDynamicClusters(0))
		}},
		{"key space", func() (*mindex.Index[distance.Point], error) {
			many := make([]pivot.Pivot[distance.Point], 300)
			for i := range many {
				many[i] = pivot.New(uint32(i), distance.Point{X: float64(i)})
			}
			return mindex.New(4, 2, many, distance.PointDistance)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ix, err := tc.new()
			assert.Nil(t, ix)
			assert.ErrorIs(t, err, mindex.ErrInvalidArgument)
		})
	}

	_, err := mindex.New(5, 2, pivots, distance.PointDistance)
	var levelErr *mindex.ErrInvalidLevel
	require.ErrorAs(t, err, &levelErr)
	assert.Equal(t, 5, levelErr.Level)
	assert.Equal(t, 3, levelErr.Pivots)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	points := testutil.NewRNG(1).Points(20, 0, 1)

	ix, err := mindex.New(2, 2, pointPivots(points[0], points[1]), distance.PointDistance)
	require.NoError(t, err)

	_, err = ix.RangeQuery(ctx, points[0], 1)
	assert.ErrorIs(t, err, mindex.ErrNotBuilt)
	_, err = ix.ClusterGraph()
	assert.ErrorIs(t, err, mindex.ErrNotBuilt)

	require.NoError(t, ix.AddAll(points))
	assert.Equal(t, 20, ix.Len())
	require.NoError(t, ix.Build(ctx))

	assert.ErrorIs(t, ix.Build(ctx), mindex.ErrAlreadyBuilt)
	assert.ErrorIs(t, ix.Add(points[0]), mindex.ErrAlreadyBuilt)
	assert.ErrorIs(t, ix.AddAll(points), mindex.ErrInvalidState)

	_, err = ix.RangeQuery(ctx, points[0], -1)
	assert.ErrorIs(t, err, mindex.ErrInvalidArgument)
	_, err = ix.RangeQuery(ctx, points[0], math.NaN())
	assert.ErrorIs(t, err, mindex.ErrInvalidArgument)

	results, err := ix.RangeQuery(ctx, points[0], math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, points, results)

	obj, ok := ix.Object(3)
	assert.True(t, ok)
	assert.Equal(t, points[3], obj)
	_, ok = ix.Object(20)
	assert.False(t, ok)

	require.NoError(t, ix.Close())
	assert.ErrorIs(t, ix.Close(), mindex.ErrClosed)

	_, err = ix.RangeQuery(ctx, points[0], 1)
	assert.ErrorIs(t, err, mindex.ErrClosed)
	assert.ErrorIs(t, ix.Add(points[0]), mindex.ErrClosed)
}

func TestBuild_FailingDistance(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	points := testutil.NewRNG(2).Points(50, 0, 1)
	pivots := pointPivots(distance.Point{}, distance.Point{X: 1, Y: 1})

	for _, tc := range []struct {
		name      string
		failAfter int64
		opts      []mindex.Option
	}{
		{"maximum distance", 100, nil},
		{"pivot table", 30, []mindex.Option{mindex.WithMaximumDistance(2)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int64
			fn := func(a, b distance.Point) (float64, error) {
				if calls.Add(1) > tc.failAfter {
					return 0, boom
				}
				return distance.PointDistance(a, b)
			}

			metrics := &mindex.BasicMetricsCollector{}
			opts := append(tc.opts, mindex.WithGranularity(5), mindex.WithMetricsCollector(metrics))

			ix, err := mindex.New(2, 2, pivots, fn, opts...)
			require.NoError(t, err)
			require.NoError(t, ix.AddAll(points))

			assert.ErrorIs(t, ix.Build(ctx), boom)
			assert.ErrorIs(t, ix.Build(ctx), mindex.ErrBuildFailed)
			assert.ErrorIs(t, ix.Add(points[0]), mindex.ErrBuildFailed)

			_, err = ix.RangeQuery(ctx, points[0], 1)
			assert.ErrorIs(t, err, mindex.ErrBuildFailed)

			stats := metrics.GetStats()
			assert.Equal(t, int64(1), stats.BuildCount)
			assert.Equal(t, int64(1), stats.BuildErrors)
		})
	}
}

func TestBuild_InvalidDistanceValue(t *testing.T) {
	fn := func(a, b float64) (float64, error) { return a - b, nil }

	ix, err := mindex.New(1, 2, []pivot.Pivot[float64]{pivot.New(0, 0.0)}, fn)
	require.NoError(t, err)
	require.NoError(t, ix.AddAll([]float64{-1, 1, 2}))

	assert.ErrorIs(t, ix.Build(context.Background()), distance.ErrInvalidDistance)
}

func TestRangeQuery_FailingDistance(t *testing.T) {
	boom := errors.New("boom")
	var fail atomic.Bool
	fn := func(a, b float64) (float64, error) {
		if fail.Load() {
			return 0, boom
		}
		return distance.Scalar(a, b)
	}

	ix, err := mindex.New(1, 2, []pivot.Pivot[float64]{pivot.New(0, 0.0)}, fn)
	require.NoError(t, err)
	buildIndex(t, ix, []float64{1, 2, 3})

	fail.Store(true)
	_, err = ix.RangeQuery(context.Background(), 2, 1)
	assert.ErrorIs(t, err, boom)

	fail.Store(false)
	results, err := ix.RangeQuery(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, results)
}

func TestRangeQuery_Canceled(t *testing.T) {
	points := testutil.NewRNG(2).Points(50, 0, 1)
	ix, err := mindex.New(1, 2, pointPivots(distance.Point{}), distance.PointDistance)
	require.NoError(t, err)
	buildIndex(t, ix, points)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ix.RangeQuery(ctx, points[0], 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsAndGraphs(t *testing.T) {
	rng := testutil.NewRNG(8)
	points := rng.Points(100, 0, 10)
	pivots := pivot.Select(points, 4, rng.Rand())

	ix, err := mindex.New(2, 3, pivots, distance.PointDistance)
	require.NoError(t, err)
	buildIndex(t, ix, points)

	stats, err := ix.Stats()
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Objects)
	assert.Equal(t, 4, stats.Pivots)
	assert.Equal(t, 2, stats.MaxLevel)
	assert.Equal(t, 3, stats.Degree)
	assert.Equal(t, 100, stats.Clusters.Objects)
	assert.Equal(t, 2, stats.Clusters.Depth)
	assert.Greater(t, stats.BTreeHeight, 1)
	assert.Equal(t, pivot.EstimateBytes(100, 4), stats.TableBytes)
	assert.Equal(t, testutil.ExactMaximumDistance(points, distance.PointDistance), stats.MaximumDistance)

	clusters, err := ix.ClusterGraph()
	require.NoError(t, err)
	assert.Contains(t, clusters, "digraph clusters")

	tree, err := ix.TreeGraph()
	require.NoError(t, err)
	assert.Contains(t, tree, "digraph btree")
}

func TestResourceController(t *testing.T) {
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes: pivot.EstimateBytes(100, 3),
		MaxWorkers:       2,
	})

	rng := testutil.NewRNG(9)
	points := rng.Points(100, 0, 10)
	pivots := pivot.Select(points, 3, rng.Rand())

	first, err := mindex.New(2, 4, pivots, distance.PointDistance, mindex.WithResourceController(rc))
	require.NoError(t, err)
	require.NoError(t, first.AddAll(points))
	require.NoError(t, first.Build(context.Background()))
	assert.Equal(t, pivot.EstimateBytes(100, 3), rc.MemoryUsage())

	// The budget is exhausted until the first index is closed.
	second, err := mindex.New(2, 4, pivots, distance.PointDistance, mindex.WithResourceController(rc))
	require.NoError(t, err)
	require.NoError(t, second.AddAll(points))
	assert.ErrorIs(t, second.Build(context.Background()), resource.ErrMemoryLimit)

	require.NoError(t, first.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestMetricsCollector(t *testing.T) {
	metrics := &mindex.BasicMetricsCollector{}

	rng := testutil.NewRNG(10)
	points := rng.Points(100, 0, 10)

	ix, err := mindex.Static(pivot.Select(points, 3, rng.Rand()), distance.PointDistance).Metrics(metrics).Build()
	require.NoError(t, err)
	buildIndex(t, ix, points)

	for _, q := range points[:5] {
		_, err := ix.RangeQuery(context.Background(), q, 1)
		require.NoError(t, err)
	}
	_, err = ix.RangeQuery(context.Background(), points[0], -1)
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BuildCount)
	assert.Equal(t, int64(0), stats.BuildErrors)
	assert.Equal(t, int64(100), stats.BuildObjects)
	assert.Equal(t, int64(6), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryErrors)
	assert.GreaterOrEqual(t, stats.QueryResults, int64(5))
}
