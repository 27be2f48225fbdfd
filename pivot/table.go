package pivot

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/internal/parallel"
	"github.com/hupe1980/mindex/resource"
)

// Entry is one (pivot, normalized distance) pair of an object.
type Entry struct {
	Slot     int
	Distance float64
}

// Table holds, for every object, its normalized distances to all pivots in two
// orders: ascending by distance (ties by slot) and by pivot slot.
//
// A Table is immutable after construction and safe for concurrent reads.
type Table[D any] struct {
	set     *Set[D]
	maxDist float64
	n       int

	byDistance []Entry   // n rows of set.Len() entries
	bySlot     []float64 // n rows of set.Len() distances

	rc      *resource.Controller
	bytes   int64
	release sync.Once
}

// EstimateBytes returns the memory a table for n objects and k pivots occupies.
func EstimateBytes(n, k int) int64 {
	const entrySize, distSize = 16, 8
	return int64(n) * int64(k) * (entrySize + distSize)
}

// Calculate computes the pivot distance table of objects.
//
// Distances are divided by maximumDistance; a non-positive maximum distance is
// treated as 1. Objects are split into chunks of Granularity objects that are
// processed in parallel; every chunk produces its own rows and a single collector
// copies them into the table once all chunks have finished. A failing distance
// evaluation aborts the whole calculation.
//
// When a resource controller is configured the table's memory is reserved on it
// and returned by Release.
func Calculate[D any](ctx context.Context, set *Set[D], objects []D, maximumDistance float64, fn distance.Func[D], optFns ...func(o *Options)) (*Table[D], error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrNoPivots
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: distance function is nil", ErrInvalidArgument)
	}

	opts := buildOptions(optFns)
	k := set.Len()
	n := len(objects)

	bytes := EstimateBytes(n, k)
	if err := opts.Controller.ReserveMemory(bytes); err != nil {
		return nil, fmt.Errorf("pivot table of %d objects: %w", n, err)
	}

	t := newTable(set, n, maximumDistance)
	t.rc, t.bytes = opts.Controller, bytes

	fn = resource.LimitDistance(ctx, opts.Controller, distance.Checked(fn))

	type rows struct {
		byDistance []Entry
		bySlot     []float64
	}

	chunks := parallel.Chunks(n, opts.Granularity)
	results, err := parallel.Map(ctx, opts.Workers, chunks, opts.Controller, func(ctx context.Context, c int) (rows, error) {
		start := c * opts.Granularity
		end := min(start+opts.Granularity, n)

		r := rows{
			byDistance: make([]Entry, (end-start)*k),
			bySlot:     make([]float64, (end-start)*k),
		}
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return rows{}, err
			}
			off := (i - start) * k
			if err := t.fillRow(objects[i], fn, r.byDistance[off:off+k], r.bySlot[off:off+k]); err != nil {
				return rows{}, err
			}
		}
		return r, nil
	})
	if err != nil {
		t.Release()
		return nil, err
	}

	for c, r := range results {
		off := c * opts.Granularity * k
		copy(t.byDistance[off:], r.byDistance)
		copy(t.bySlot[off:], r.bySlot)
	}

	return t, nil
}

// CalculateOne computes the table of a single object sequentially, as done for
// every query.
func CalculateOne[D any](set *Set[D], object D, maximumDistance float64, fn distance.Func[D]) (*Table[D], error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrNoPivots
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: distance function is nil", ErrInvalidArgument)
	}

	t := newTable(set, 1, maximumDistance)
	if err := t.fillRow(object, distance.Checked(fn), t.byDistance, t.bySlot); err != nil {
		return nil, err
	}
	return t, nil
}

func newTable[D any](set *Set[D], n int, maximumDistance float64) *Table[D] {
	if maximumDistance <= 0 {
		maximumDistance = 1
	}
	k := set.Len()
	return &Table[D]{
		set:        set,
		maxDist:    maximumDistance,
		n:          n,
		byDistance: make([]Entry, n*k),
		bySlot:     make([]float64, n*k),
	}
}

func (t *Table[D]) fillRow(object D, fn distance.Func[D], byDistance []Entry, bySlot []float64) error {
	for slot, p := range t.set.pivots {
		d, err := fn(object, p.Object)
		if err != nil {
			return fmt.Errorf("distance to pivot %d: %w", p.ID, err)
		}
		nd := d / t.maxDist
		bySlot[slot] = nd
		byDistance[slot] = Entry{Slot: slot, Distance: nd}
	}

	slices.SortFunc(byDistance, func(a, b Entry) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return a.Slot - b.Slot
		}
	})
	return nil
}

// Release returns the table's memory reservation to its resource controller.
// It is safe to call more than once.
func (t *Table[D]) Release() {
	t.release.Do(func() {
		t.rc.ReleaseMemory(t.bytes)
	})
}

// Set returns the pivot set the table was computed for.
func (t *Table[D]) Set() *Set[D] { return t.set }

// MaximumDistance returns the normalization constant.
func (t *Table[D]) MaximumDistance() float64 { return t.maxDist }

// Len returns the number of objects.
func (t *Table[D]) Len() int { return t.n }

// Pivots returns the number of pivots per object.
func (t *Table[D]) Pivots() int { return t.set.Len() }

func (t *Table[D]) row(o int) []Entry {
	k := t.set.Len()
	return t.byDistance[o*k : (o+1)*k]
}

// Row returns the entries of object o ordered by ascending distance.
// The returned slice must not be modified.
func (t *Table[D]) Row(o int) []Entry {
	return t.row(o)
}

// FirstPivotDistance returns the normalized distance of object o to its nearest pivot.
func (t *Table[D]) FirstPivotDistance(o int) float64 {
	return t.byDistance[o*t.set.Len()].Distance
}

// PivotAt returns the k-th nearest pivot of object o.
func (t *Table[D]) PivotAt(o, k int) Pivot[D] {
	return t.set.pivots[t.row(o)[k].Slot]
}

// SlotAt returns the slot of the k-th nearest pivot of object o.
func (t *Table[D]) SlotAt(o, k int) int {
	return t.row(o)[k].Slot
}

// DistanceAt returns the normalized distance of object o to its k-th nearest pivot.
func (t *Table[D]) DistanceAt(o, k int) float64 {
	return t.row(o)[k].Distance
}

// SlotDistance returns the normalized distance of object o to the pivot in slot.
func (t *Table[D]) SlotDistance(o, slot int) float64 {
	return t.bySlot[o*t.set.Len()+slot]
}

// Distances returns the normalized distances of object o ordered by slot.
// The returned slice must not be modified.
func (t *Table[D]) Distances(o int) []float64 {
	k := t.set.Len()
	return t.bySlot[o*k : (o+1)*k]
}

// PivotDistance returns the normalized distance of object o to the pivot with
// the given ID, or NaN if the set does not contain it.
func (t *Table[D]) PivotDistance(o int, id uint32) float64 {
	d, err := t.LookupPivotDistance(o, id)
	if err != nil {
		return math.NaN()
	}
	return d
}

// LookupPivotDistance is PivotDistance reporting unknown pivots as ErrUnknownPivot.
func (t *Table[D]) LookupPivotDistance(o int, id uint32) (float64, error) {
	slot, ok := t.set.Slot(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPivot, id)
	}
	return t.SlotDistance(o, slot), nil
}
