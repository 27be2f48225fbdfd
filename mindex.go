package mindex

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/mindex/btree"
	"github.com/hupe1980/mindex/cluster"
	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/internal/conv"
	"github.com/hupe1980/mindex/pivot"
	"github.com/hupe1980/mindex/resource"
)

// maxKeySpace bounds pivots^maxLevel so that storage keys keep at least 20 bits
// for their fractional part.
const maxKeySpace = 1 << 32

// snapshot is the read-only state produced by a successful Build.
type snapshot[D any] struct {
	objects []D
	maxDist float64
	table   *pivot.Table[D]
	tree    *cluster.Tree
	store   *btree.MultiMap[float64, uint32]
}

// Index is a metric-space range index over objects of type D.
//
// Objects are added first and indexed by a single call to Build. After a
// successful Build the index is read-only and RangeQuery is safe for concurrent
// use. Add, AddAll and Build must not run concurrently with each other.
type Index[D any] struct {
	maxLevel int
	degree   int
	set      *pivot.Set[D]
	fn       distance.Func[D]
	opts     options
	logger   *Logger

	mu      sync.Mutex
	objects []D
	failed  error

	snap   atomic.Pointer[snapshot[D]]
	closed atomic.Bool
}

// New creates an empty index.
//
// maxClusterLevel is the maximum depth of the cluster hierarchy and must lie in
// [1, len(pivots)]; bTreeDegree is the degree of the candidate store and must be
// at least 2. Pivot IDs must be unique.
func New[D any](maxClusterLevel, bTreeDegree int, pivots []pivot.Pivot[D], fn distance.Func[D], opts ...Option) (*Index[D], error) {
	set, err := pivot.NewSet(pivots)
	if err != nil {
		return nil, translateError(err)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: distance function is nil", ErrInvalidArgument)
	}
	if maxClusterLevel < 1 || maxClusterLevel > set.Len() {
		return nil, &ErrInvalidLevel{Level: maxClusterLevel, Pivots: set.Len()}
	}
	if bTreeDegree < 2 {
		return nil, translateError(fmt.Errorf("%w: %d", btree.ErrInvalidDegree, bTreeDegree))
	}

	space := 1.0
	for range maxClusterLevel {
		space *= float64(set.Len())
	}
	if space > maxKeySpace {
		return nil, &ErrKeySpace{Pivots: set.Len(), Level: maxClusterLevel}
	}

	o := buildOptions(opts)
	if o.precomputed && (!(o.maximumDistance > 0) || math.IsInf(o.maximumDistance, 1)) {
		return nil, fmt.Errorf("%w: maximum distance must be positive and finite, got %v", ErrInvalidArgument, o.maximumDistance)
	}
	if o.dynamic && o.leafObjectsLimit < 1 {
		return nil, fmt.Errorf("%w: leaf objects limit must be positive, got %d", ErrInvalidArgument, o.leafObjectsLimit)
	}

	return &Index[D]{
		maxLevel: maxClusterLevel,
		degree:   bTreeDegree,
		set:      set,
		fn:       fn,
		opts:     o,
		logger:   o.logger.WithPivots(set.Len(), maxClusterLevel),
	}, nil
}

// checkMutable reports why objects can no longer be added. The caller holds mu.
func (ix *Index[D]) checkMutable() error {
	switch {
	case ix.closed.Load():
		return ErrClosed
	case ix.failed != nil:
		return ErrBuildFailed
	case ix.snap.Load() != nil:
		return ErrAlreadyBuilt
	}
	return nil
}

// Add queues object for indexing. Objects are identified by insertion order.
func (ix *Index[D]) Add(object D) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.checkMutable(); err != nil {
		return err
	}
	if uint64(len(ix.objects)) >= math.MaxUint32 {
		return fmt.Errorf("%w: too many objects", ErrInvalidArgument)
	}
	ix.objects = append(ix.objects, object)
	return nil
}

// AddAll queues objects for indexing in order.
func (ix *Index[D]) AddAll(objects []D) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.checkMutable(); err != nil {
		return err
	}
	if uint64(len(ix.objects))+uint64(len(objects)) > math.MaxUint32 {
		return fmt.Errorf("%w: too many objects", ErrInvalidArgument)
	}
	ix.objects = append(ix.objects, objects...)
	return nil
}

// Len returns the number of added objects.
func (ix *Index[D]) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.objects)
}

// Build indexes all added objects. It must be called exactly once.
//
// Build computes the maximum distance (unless precomputed), the pivot distance
// table, the cluster hierarchy and the candidate store. If any step fails, the
// error is returned and the index moves into a failed state in which every
// further operation returns ErrBuildFailed.
func (ix *Index[D]) Build(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.checkMutable(); err != nil {
		return err
	}

	start := time.Now()
	snap, err := ix.build(ctx)
	elapsed := time.Since(start)

	ix.logger.LogBuild(ctx, len(ix.objects), elapsed, err)
	ix.opts.metricsCollector.RecordBuild(len(ix.objects), elapsed, err)

	if err != nil {
		ix.failed = err
		return err
	}
	ix.snap.Store(snap)
	return nil
}

func (ix *Index[D]) build(ctx context.Context) (*snapshot[D], error) {
	objects := slices.Clip(ix.objects)
	pivotOpts := func(o *pivot.Options) {
		o.Workers = ix.opts.workers
		if ix.opts.granularity > 0 {
			o.Granularity = ix.opts.granularity
		}
		o.Controller = ix.opts.rc
	}

	phase := time.Now()
	maxDist := ix.opts.maximumDistance
	if !ix.opts.precomputed {
		d, err := pivot.MaximumDistance(ctx, objects, ix.fn, pivotOpts)
		if err != nil {
			return nil, fmt.Errorf("maximum distance: %w", err)
		}
		maxDist = d
		ix.logger.LogPhase(ctx, "maximum_distance", time.Since(phase), "maximum_distance", maxDist)
	}
	if maxDist <= 0 {
		// All objects coincide; any positive constant normalizes.
		maxDist = 1
	}

	phase = time.Now()
	table, err := pivot.Calculate(ctx, ix.set, objects, maxDist, ix.fn, pivotOpts)
	if err != nil {
		return nil, translateError(fmt.Errorf("pivot table: %w", err))
	}
	ix.logger.LogPhase(ctx, "pivot_table", time.Since(phase), "bytes", pivot.EstimateBytes(len(objects), ix.set.Len()))

	snap, err := ix.cluster(ctx, objects, maxDist, table)
	if err != nil {
		table.Release()
		return nil, err
	}
	return snap, nil
}

func (ix *Index[D]) cluster(ctx context.Context, objects []D, maxDist float64, table *pivot.Table[D]) (*snapshot[D], error) {
	tree, err := cluster.NewTree(ix.set.Len(), ix.maxLevel)
	if err != nil {
		return nil, translateError(err)
	}
	store, err := btree.NewMultiMap[float64, uint32](ix.degree)
	if err != nil {
		return nil, translateError(err)
	}

	var builder cluster.Builder = cluster.Static{}
	if ix.opts.dynamic {
		builder = cluster.Dynamic{LeafObjectsLimit: ix.opts.leafObjectsLimit}
	}

	phase := time.Now()
	sink := func(key float64, object int) error {
		id, err := conv.IntToUint32(object)
		if err != nil {
			return err
		}
		store.Insert(key, id)
		return nil
	}
	if err := builder.Build(tree, table, sink); err != nil {
		return nil, translateError(fmt.Errorf("clustering: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := tree.Stats()
	ix.logger.LogPhase(ctx, "clustering", time.Since(phase),
		"clusters", stats.Clusters,
		"leaves", stats.Leaves,
		"depth", stats.Depth,
		"btree_height", store.Height(),
	)

	return &snapshot[D]{
		objects: objects,
		maxDist: maxDist,
		table:   table,
		tree:    tree,
		store:   store,
	}, nil
}

// built returns the snapshot or the lifecycle error preventing reads.
func (ix *Index[D]) built() (*snapshot[D], error) {
	if ix.closed.Load() {
		return nil, ErrClosed
	}
	if snap := ix.snap.Load(); snap != nil {
		return snap, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if snap := ix.snap.Load(); snap != nil {
		return snap, nil
	}
	if ix.failed != nil {
		return nil, ErrBuildFailed
	}
	return nil, ErrNotBuilt
}

// MaximumDistance returns the normalization constant used by the index: the
// precomputed value, or after Build the computed one. It returns 0 before a
// Build that computes it.
func (ix *Index[D]) MaximumDistance() float64 {
	if snap := ix.snap.Load(); snap != nil {
		return snap.maxDist
	}
	if ix.opts.precomputed {
		return ix.opts.maximumDistance
	}
	return 0
}

// Pivots returns the pivots in slot order.
func (ix *Index[D]) Pivots() []pivot.Pivot[D] {
	return ix.set.Pivots()
}

// Object returns the object with the given insertion index.
func (ix *Index[D]) Object(id int) (D, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if id < 0 || id >= len(ix.objects) {
		var zero D
		return zero, false
	}
	return ix.objects[id], true
}

// IndexStats describes a built index.
type IndexStats struct {
	Objects         int
	Pivots          int
	MaxLevel        int
	Degree          int
	MaximumDistance float64
	Clusters        cluster.Stats
	BTreeHeight     int
	BTreeKeys       int
	TableBytes      int64
}

// Stats returns statistics of the built index.
func (ix *Index[D]) Stats() (IndexStats, error) {
	snap, err := ix.built()
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{
		Objects:         len(snap.objects),
		Pivots:          ix.set.Len(),
		MaxLevel:        ix.maxLevel,
		Degree:          ix.degree,
		MaximumDistance: snap.maxDist,
		Clusters:        snap.tree.Stats(),
		BTreeHeight:     snap.store.Height(),
		BTreeKeys:       snap.store.KeyCount(),
		TableBytes:      pivot.EstimateBytes(len(snap.objects), ix.set.Len()),
	}, nil
}

// ClusterGraph returns the cluster hierarchy in Graphviz DOT format.
func (ix *Index[D]) ClusterGraph() (string, error) {
	snap, err := ix.built()
	if err != nil {
		return "", err
	}
	return snap.tree.Graph(), nil
}

// TreeGraph returns the B+Tree candidate store in Graphviz DOT format.
func (ix *Index[D]) TreeGraph() (string, error) {
	snap, err := ix.built()
	if err != nil {
		return "", err
	}
	return snap.store.Graph(), nil
}

// distanceFunc returns fn checked for invalid values and throttled by the
// resource controller.
func (ix *Index[D]) distanceFunc(ctx context.Context) distance.Func[D] {
	return resource.LimitDistance(ctx, ix.opts.rc, distance.Checked(ix.fn))
}
