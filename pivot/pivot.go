package pivot

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
)

var (
	// ErrInvalidArgument is wrapped by every argument validation error of this package.
	ErrInvalidArgument = errors.New("pivot: invalid argument")

	// ErrNoPivots is returned when a pivot set is empty.
	ErrNoPivots = fmt.Errorf("%w: pivots cannot be empty", ErrInvalidArgument)

	// ErrDuplicatePivot is returned when two pivots share an ID.
	ErrDuplicatePivot = fmt.Errorf("%w: duplicate pivot id", ErrInvalidArgument)

	// ErrUnknownPivot is returned when a pivot ID is not part of the set.
	ErrUnknownPivot = fmt.Errorf("%w: unknown pivot id", ErrInvalidArgument)
)

// Pivot is a reference object with a stable ID. Pivots are compared by ID only.
type Pivot[D any] struct {
	ID     uint32
	Object D
}

// New creates a pivot.
func New[D any](id uint32, object D) Pivot[D] {
	return Pivot[D]{ID: id, Object: object}
}

// Equal reports whether both pivots carry the same ID.
func (p Pivot[D]) Equal(o Pivot[D]) bool {
	return p.ID == o.ID
}

func (p Pivot[D]) String() string {
	return fmt.Sprintf("Pivot{id=%d}", p.ID)
}

// Set is an immutable, ID-ordered collection of pivots.
//
// Every pivot owns a dense slot in [0, Len()): its rank by ID. Slots are the
// digits used to encode cluster paths.
type Set[D any] struct {
	pivots []Pivot[D]
	slots  map[uint32]int
}

// NewSet validates pivots and builds a set. The input slice is not retained.
func NewSet[D any](pivots []Pivot[D]) (*Set[D], error) {
	if len(pivots) == 0 {
		return nil, ErrNoPivots
	}

	sorted := slices.Clone(pivots)
	slices.SortFunc(sorted, func(a, b Pivot[D]) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	slots := make(map[uint32]int, len(sorted))
	for i, p := range sorted {
		if _, ok := slots[p.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePivot, p.ID)
		}
		slots[p.ID] = i
	}

	return &Set[D]{pivots: sorted, slots: slots}, nil
}

// Len returns the number of pivots.
func (s *Set[D]) Len() int {
	return len(s.pivots)
}

// At returns the pivot occupying slot.
func (s *Set[D]) At(slot int) Pivot[D] {
	return s.pivots[slot]
}

// Slot returns the slot of the pivot with the given ID.
func (s *Set[D]) Slot(id uint32) (int, bool) {
	slot, ok := s.slots[id]
	return slot, ok
}

// Pivots returns a copy of the pivots in slot order.
func (s *Set[D]) Pivots() []Pivot[D] {
	return slices.Clone(s.pivots)
}

// Select picks n distinct objects as pivots with IDs 0..n-1.
// If n exceeds len(objects), every object becomes a pivot.
func Select[D any](objects []D, n int, rng *rand.Rand) []Pivot[D] {
	if n > len(objects) {
		n = len(objects)
	}
	if n <= 0 {
		return nil
	}

	perm := rng.Perm(len(objects))
	pivots := make([]Pivot[D], n)
	for i := range n {
		pivots[i] = New(uint32(i), objects[perm[i]])
	}
	return pivots
}
