package voronoi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/mindex/cluster"
	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/internal/parallel"
	"github.com/hupe1980/mindex/pivot"
	"github.com/hupe1980/mindex/resource"
)

// ErrInvalidArgument is wrapped by every argument validation error of this package.
var ErrInvalidArgument = errors.New("voronoi: invalid argument")

// QuickDivide returns, for every point, the index of its nearest pivot. Ties go
// to the pivot listed first.
func QuickDivide[D any](pivots []pivot.Pivot[D], points []D, fn distance.Func[D]) ([]int, error) {
	if len(pivots) == 0 {
		return nil, fmt.Errorf("%w: pivots cannot be empty", ErrInvalidArgument)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: distance function is nil", ErrInvalidArgument)
	}
	fn = distance.Checked(fn)

	nearest := make([]int, len(points))
	for i, p := range points {
		best, bestDist := 0, math.MaxFloat64
		for j, pv := range pivots {
			d, err := fn(pv.Object, p)
			if err != nil {
				return nil, err
			}
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		nearest[i] = best
	}
	return nearest, nil
}

// Options configures Build.
type Options struct {
	// Workers bounds the number of cells divided concurrently.
	// Zero uses the available hardware parallelism.
	Workers int

	// Controller shares worker slots and the distance-rate budget with other builds.
	Controller *resource.Controller
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{}

type builder[D any] struct {
	level  int
	set    *pivot.Set[D]
	points []D
	fn     distance.Func[D]
	sem    *semaphore.Weighted
	rc     *resource.Controller
}

// Build partitions points into a hierarchy of Voronoi cells of the given depth.
//
// Level-1 cells exist for every pivot. Each non-empty cell is split by the
// pivots not yet on its path, in one task per sibling cell, until level is
// reached or no pivots remain. The returned top-level cells are ordered by
// pivot slot. Cells are not normalized.
func Build[D any](ctx context.Context, level int, set *pivot.Set[D], points []D, fn distance.Func[D], optFns ...func(o *Options)) ([]*Cell[D], error) {
	if level < 1 {
		return nil, fmt.Errorf("%w: level must be > 0, got %d", ErrInvalidArgument, level)
	}
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("%w: pivots cannot be empty", ErrInvalidArgument)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: points cannot be empty", ErrInvalidArgument)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: distance function is nil", ErrInvalidArgument)
	}

	opts := DefaultOptions
	for _, optFn := range optFns {
		optFn(&opts)
	}

	b := &builder[D]{
		level:  level,
		set:    set,
		points: points,
		fn:     resource.LimitDistance(ctx, opts.Controller, distance.Checked(fn)),
		sem:    semaphore.NewWeighted(int64(parallel.Workers(opts.Workers))),
		rc:     opts.Controller,
	}

	root, err := cluster.NewPathIndex(set.Len())
	if err != nil {
		return nil, err
	}

	all := make([]int, len(points))
	for i := range all {
		all[i] = i
	}
	slots := make([]int, set.Len())
	for i := range slots {
		slots[i] = i
	}

	// The root is a scratch cell; its children are the level-1 cells.
	top := newCell(root, pivot.Pivot[D]{})
	top.objects = all

	if err := b.split(ctx, top, slots, 1); err != nil {
		return nil, err
	}
	return top.children, nil
}

// split divides the objects of cell among sub-cells for the pending pivot slots
// at currentLevel and recurses into the non-empty ones.
func (b *builder[D]) split(ctx context.Context, cell *Cell[D], pending []int, currentLevel int) error {
	if err := b.divide(ctx, cell, pending); err != nil {
		return err
	}
	if currentLevel >= b.level || len(pending) == 1 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range cell.children {
		if sub.Len() == 0 {
			continue
		}
		rest := slices.Delete(slices.Clone(pending), i, i+1)
		g.Go(func() error {
			return b.split(gctx, sub, rest, currentLevel+1)
		})
	}
	return g.Wait()
}

// divide creates the sub-cells of cell. The worker slot is held only while
// dividing so that waiting parents never starve their children.
func (b *builder[D]) divide(ctx context.Context, cell *Cell[D], pending []int) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)

	if err := b.rc.AcquireWorker(ctx); err != nil {
		return err
	}
	defer b.rc.ReleaseWorker()

	pivots := make([]pivot.Pivot[D], len(pending))
	children := make([]*Cell[D], len(pending))
	for i, slot := range pending {
		pivots[i] = b.set.At(slot)

		path, err := cell.path.AddLevel(slot)
		if err != nil {
			return err
		}
		base := cell.base
		if path.Level() == 1 {
			base = pivots[i]
		}
		children[i] = newCell(path, base)
	}

	members := make([]D, len(cell.objects))
	for i, o := range cell.objects {
		members[i] = b.points[o]
	}

	nearest, err := QuickDivide(pivots, members, b.fn)
	if err != nil {
		return err
	}

	for i, o := range cell.objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		child := children[nearest[i]]
		d, err := b.fn(child.base.Object, b.points[o])
		if err != nil {
			return err
		}
		child.add(o, d)
	}

	cell.children = children
	return nil
}
