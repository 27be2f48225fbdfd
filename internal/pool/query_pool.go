// Package pool provides object pools for allocation-free range queries.
// Uses sync.Pool for automatic memory reuse and bitsets for consumed pivot tracking.
package pool

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/mindex/cluster"
)

const (
	// DefaultQueueCapacity is the default capacity of the traversal queue.
	DefaultQueueCapacity = 64

	// DefaultMaxPivots is the default initial capacity of the pivot bitset.
	DefaultMaxPivots = 64

	// MaxRetainedCandidates bounds the candidate set kept by a pooled context.
	// Larger sets are dropped on Put so one huge query does not pin memory.
	MaxRetainedCandidates = 1 << 20
)

// QueryContext contains reusable buffers for a single range query.
type QueryContext struct {
	// Candidates collects the object IDs returned by leaf window scans.
	Candidates *roaring.Bitmap
	// Queue is the breadth-first traversal queue of cluster nodes.
	Queue []cluster.NodeID
	// Used marks the pivot slots consumed by the path of the current node.
	Used *bitset.BitSet
}

var queryContextPool = sync.Pool{
	New: func() any {
		return &QueryContext{
			Candidates: roaring.New(),
			Queue:      make([]cluster.NodeID, 0, DefaultQueueCapacity),
			Used:       bitset.New(DefaultMaxPivots),
		}
	},
}

// Get retrieves a cleared QueryContext from the pool.
func Get() *QueryContext {
	qc := queryContextPool.Get().(*QueryContext)
	qc.Reset()
	return qc
}

// Put returns a QueryContext to the pool for reuse.
func Put(qc *QueryContext) {
	if qc.Candidates.GetCardinality() > MaxRetainedCandidates {
		qc.Candidates = roaring.New()
	}
	queryContextPool.Put(qc)
}

// Reset clears the QueryContext for reuse.
func (qc *QueryContext) Reset() {
	qc.Candidates.Clear()
	qc.Queue = qc.Queue[:0]
	qc.Used.ClearAll()
}

// MarkPath marks the first n digits of path as used and clears all others.
func (qc *QueryContext) MarkPath(path cluster.PathIndex, n int) {
	qc.Used.ClearAll()
	for i := range n {
		qc.Used.Set(uint(path.Digit(i)))
	}
}

// IsUsed reports whether pivot slot was marked by the last MarkPath.
func (qc *QueryContext) IsUsed(slot int) bool {
	return qc.Used.Test(uint(slot))
}
