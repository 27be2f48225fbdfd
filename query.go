package mindex

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/mindex/cluster"
	"github.com/hupe1980/mindex/internal/conv"
	"github.com/hupe1980/mindex/internal/pool"
	"github.com/hupe1980/mindex/pivot"
)

// QueryStats describes the work done by a single range query.
type QueryStats struct {
	// VisitedClusters counts clusters reached by the traversal.
	VisitedClusters int
	// PrunedByDoublePivot counts subtrees skipped because a nearer unused pivot
	// rules out every object routed through them.
	PrunedByDoublePivot int
	// PrunedByRange counts leaves skipped because their key range misses the query ring.
	PrunedByRange int
	// ScannedLeaves counts leaves whose key window was scanned in the B+Tree.
	ScannedLeaves int
	// ScannedEntries counts values returned by the window scans, including repeats.
	ScannedEntries int
	// Candidates counts distinct objects returned by the window scans.
	Candidates int
	// FilteredByPivots counts candidates discarded by the pivot lower bound.
	FilteredByPivots int
	// DistanceComputations counts exact distance evaluations against candidates.
	DistanceComputations int
	// Results counts objects within the radius.
	Results int
}

// PrunedClusters returns the number of clusters skipped by either pruning rule.
func (s QueryStats) PrunedClusters() int {
	return s.PrunedByDoublePivot + s.PrunedByRange
}

// RangeQuery returns every indexed object within radius of query, in insertion
// order. The result is exact.
func (ix *Index[D]) RangeQuery(ctx context.Context, query D, radius float64) ([]D, error) {
	results, _, err := ix.RangeQueryWithStats(ctx, query, radius)
	return results, err
}

// RangeQueryWithStats is RangeQuery also returning pruning statistics.
func (ix *Index[D]) RangeQueryWithStats(ctx context.Context, query D, radius float64) ([]D, QueryStats, error) {
	snap, ids, stats, err := ix.rangeQuery(ctx, query, radius)
	if err != nil {
		return nil, stats, err
	}

	results := make([]D, len(ids))
	for i, id := range ids {
		results[i] = snap.objects[id]
	}
	return results, stats, nil
}

// RangeQueryIDs returns the insertion indexes of every object within radius of
// query, ascending.
func (ix *Index[D]) RangeQueryIDs(ctx context.Context, query D, radius float64) ([]int, error) {
	_, ids, _, err := ix.rangeQuery(ctx, query, radius)
	return ids, err
}

func (ix *Index[D]) rangeQuery(ctx context.Context, query D, radius float64) (*snapshot[D], []int, QueryStats, error) {
	start := time.Now()
	snap, ids, stats, err := ix.search(ctx, query, radius)
	elapsed := time.Since(start)

	ix.logger.LogRangeQuery(ctx, radius, stats, err)
	ix.opts.metricsCollector.RecordRangeQuery(stats, elapsed, err)

	return snap, ids, stats, err
}

// tolerance absorbs the rounding of normalized distances and keys of magnitude x.
// Pruning decisions and scan windows are widened by it; the final distance
// comparison is exact.
func tolerance(x float64) float64 {
	const epsilon = 0x1p-52
	return 1e-12 + 8*epsilon*math.Abs(x)
}

func (ix *Index[D]) search(ctx context.Context, query D, radius float64) (*snapshot[D], []int, QueryStats, error) {
	var stats QueryStats

	snap, err := ix.built()
	if err != nil {
		return nil, nil, stats, err
	}
	if math.IsNaN(radius) || radius < 0 {
		return nil, nil, stats, fmt.Errorf("%w: radius must be non-negative, got %v", ErrInvalidArgument, radius)
	}

	fn := ix.distanceFunc(ctx)

	qt, err := pivot.CalculateOne(ix.set, query, snap.maxDist, fn)
	if err != nil {
		return nil, nil, stats, translateError(err)
	}

	qc := pool.Get()
	defer pool.Put(qc)

	q := queryPivots{
		first:   qt.FirstPivotDistance(0),
		bySlot:  qt.Distances(0),
		ordered: qt.Row(0),
		nr:      radius / snap.maxDist,
		qc:      qc,
	}

	candidates := qc.Candidates
	tree := snap.tree

	qc.Queue = append(qc.Queue, tree.Children(tree.Root())...)
	for head := 0; head < len(qc.Queue); head++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, stats, err
		}

		id := qc.Queue[head]

		n := tree.Node(id)
		stats.VisitedClusters++
		if n.Empty() {
			continue
		}

		if q.pruneDoublePivot(n) {
			stats.PrunedByDoublePivot++
			continue
		}

		switch n.Kind {
		case cluster.KindInternal:
			qc.Queue = append(qc.Queue, tree.Children(id)...)
		case cluster.KindLeaf:
			from, to, ok := q.leafWindow(n)
			if !ok {
				stats.PrunedByRange++
				continue
			}
			stats.ScannedLeaves++

			err := snap.store.AscendRange(from, to, func(_ float64, bucket []uint32) bool {
				stats.ScannedEntries += len(bucket)
				candidates.AddMany(bucket)
				return true
			})
			if err != nil {
				return nil, nil, stats, translateError(err)
			}
		}
	}

	stats.Candidates = int(candidates.GetCardinality())

	var ids []int
	it := candidates.Iterator()
	for it.HasNext() {
		o, err := conv.Uint32ToInt(it.Next())
		if err != nil {
			return nil, nil, stats, err
		}

		if q.pivotGap(snap.table.Distances(o)) {
			stats.FilteredByPivots++
			continue
		}

		if stats.DistanceComputations%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, stats, err
			}
		}

		d, err := fn(query, snap.objects[o])
		stats.DistanceComputations++
		if err != nil {
			return nil, nil, stats, err
		}
		if d <= radius {
			ids = append(ids, o)
		}
	}
	stats.Results = len(ids)

	return snap, ids, stats, nil
}

// queryPivots holds the normalized pivot distances of a query object.
type queryPivots struct {
	first   float64       // distance to the nearest pivot
	bySlot  []float64     // distances by pivot slot
	ordered []pivot.Entry // distances ascending
	nr      float64       // normalized radius
	qc      *pool.QueryContext
}

// pruneDoublePivot reports whether no object below n can be within range.
//
// An object routed through n's own pivot p at level L is nearer to p than to
// any pivot not consumed by the first L-1 path digits. For the nearest such
// pivot m of the query, the triangle inequality gives
// d(q,p) <= 2*d(q,o) + d(q,m), so d(q,p) - d(q,m) > 2r excludes the subtree.
func (q *queryPivots) pruneDoublePivot(n *cluster.Node) bool {
	level := n.Level()

	q.qc.MarkPath(n.Path, level-1)

	nearest := math.Inf(1)
	for _, e := range q.ordered {
		if !q.qc.IsUsed(e.Slot) {
			nearest = e.Distance
			break
		}
	}

	own := q.bySlot[n.Path.Last()]
	return own-nearest > 2*q.nr+tolerance(max(own, 2*q.nr))
}

// leafWindow returns the key window of the B+Tree scan for leaf n, or false if
// the leaf's nearest pivot distances cannot lie within the query ring.
//
// Keys of a leaf are its path value plus the object's nearest pivot distance.
// Since that distance is 1-Lipschitz in the object, objects within range of the
// query have keys in [base+first-nr, base+first+nr].
func (q *queryPivots) leafWindow(n *cluster.Node) (from, to float64, ok bool) {
	base := float64(n.Path.Value())
	lo := n.KeyMin - base
	hi := n.KeyMax - base

	tol := tolerance(base + 1 + q.first + q.nr)
	if q.first+q.nr < lo-tol || q.first-q.nr > hi+tol {
		return 0, 0, false
	}

	// The upper bound is widened to make the scan inclusive.
	return base + q.first - q.nr - tol, base + q.first + q.nr + tol, true
}

// pivotGap reports whether some pivot separates the candidate from the query
// by more than the radius: |d(q,p) - d(o,p)| <= d(q,o) for every pivot p.
func (q *queryPivots) pivotGap(candidate []float64) bool {
	var gap float64
	for s, d := range candidate {
		gap = max(gap, math.Abs(q.bySlot[s]-d))
	}
	return gap > q.nr+tolerance(max(gap, q.nr))
}
