package voronoi

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/mindex/cluster"
	"github.com/hupe1980/mindex/pivot"
)

var (
	// ErrInvalidState is wrapped by errors of operations called in the wrong order.
	ErrInvalidState = errors.New("voronoi: invalid state")

	// ErrAlreadyNormalized is returned when a cell is normalized twice.
	ErrAlreadyNormalized = fmt.Errorf("%w: cell is already normalized", ErrInvalidState)

	// ErrNotNormalized is returned when a key is requested before normalization.
	ErrNotNormalized = fmt.Errorf("%w: cell is not yet normalized", ErrInvalidState)

	// ErrUnknownObject is returned when a key is requested for an object the cell does not hold.
	ErrUnknownObject = fmt.Errorf("%w: object is not in cell", ErrInvalidArgument)
)

// Cell is a Voronoi cell of a multi-level partition. It holds the objects that
// are nearest to the pivots of its path, in path order, together with their
// distances to the cell's base pivot (the pivot of its level-1 ancestor).
//
// A cell keeps its objects after being split; every level of the hierarchy
// partitions the objects of its parent.
type Cell[D any] struct {
	path cluster.PathIndex
	base pivot.Pivot[D]

	objects   []int
	distances map[int]float64
	maxDist   float64

	normalized bool
	children   []*Cell[D]
}

func newCell[D any](path cluster.PathIndex, base pivot.Pivot[D]) *Cell[D] {
	return &Cell[D]{
		path:      path,
		base:      base,
		distances: make(map[int]float64),
	}
}

func (c *Cell[D]) add(object int, dist float64) {
	c.objects = append(c.objects, object)
	c.distances[object] = dist
	c.maxDist = max(c.maxDist, dist)
}

// Path returns the cell's path of pivot slots.
func (c *Cell[D]) Path() cluster.PathIndex { return c.path }

// Index returns the integer encoding of the cell's path.
func (c *Cell[D]) Index() uint64 { return c.path.Value() }

// Level returns the depth of the cell; top-level cells are at level 1.
func (c *Cell[D]) Level() int { return c.path.Level() }

// BasePivot returns the pivot distances of the cell are measured to.
func (c *Cell[D]) BasePivot() pivot.Pivot[D] { return c.base }

// Objects returns the indexes of the points in the cell, in input order.
func (c *Cell[D]) Objects() []int { return slices.Clone(c.objects) }

// Len returns the number of objects in the cell.
func (c *Cell[D]) Len() int { return len(c.objects) }

// Children returns the sub-cells ordered by their last path digit.
func (c *Cell[D]) Children() []*Cell[D] { return c.children }

// Normalized reports whether NormalizeDistances has been called.
func (c *Cell[D]) Normalized() bool { return c.normalized }

// NormalizeDistances divides the distances of all objects by the largest one,
// mapping them to [0, 1]. It can be called only once.
func (c *Cell[D]) NormalizeDistances() error {
	if c.normalized {
		return fmt.Errorf("%w: %s", ErrAlreadyNormalized, c.path)
	}

	if c.maxDist > 0 {
		for o, d := range c.distances {
			c.distances[o] = d / c.maxDist
		}
	}

	c.normalized = true
	return nil
}

// Key returns Index() plus the normalized base pivot distance of object.
func (c *Cell[D]) Key(object int) (float64, error) {
	if !c.normalized {
		return 0, fmt.Errorf("%w: %s", ErrNotNormalized, c.path)
	}

	d, ok := c.distances[object]
	if !ok {
		return 0, fmt.Errorf("%w: object %d in %s", ErrUnknownObject, object, c.path)
	}
	return float64(c.Index()) + d, nil
}

func (c *Cell[D]) String() string {
	return fmt.Sprintf("Cell{path=%s, base=%d, objects=%d}", c.path, c.base.ID, len(c.objects))
}

// Walk visits cells depth-first in path order.
func Walk[D any](cells []*Cell[D], fn func(c *Cell[D]) bool) {
	for _, c := range cells {
		if !fn(c) {
			continue
		}
		Walk(c.children, fn)
	}
}

// NormalizeAll normalizes every cell of the hierarchy.
func NormalizeAll[D any](cells []*Cell[D]) error {
	var err error
	Walk(cells, func(c *Cell[D]) bool {
		if err != nil {
			return false
		}
		err = c.NormalizeDistances()
		return err == nil
	})
	return err
}
