package btree

import (
	"cmp"
	"iter"
)

// MultiMap is a B+Tree mapping every key to the ordered bucket of values
// inserted under it.
//
// Write operations are not safe for concurrent use; once fully built, a
// MultiMap may be read by any number of goroutines.
type MultiMap[K, V any] struct {
	t *tree[K, V]
}

// NewMultiMap creates a multimap of the given degree ordered by '<'.
func NewMultiMap[K cmp.Ordered, V any](degree int) (*MultiMap[K, V], error) {
	return NewMultiMapFunc[K, V](degree, Less[K]())
}

// NewMultiMapFunc creates a multimap of the given degree ordered by less.
func NewMultiMapFunc[K, V any](degree int, less LessFunc[K]) (*MultiMap[K, V], error) {
	t, err := newTree[K, V](degree, less)
	if err != nil {
		return nil, err
	}
	return &MultiMap[K, V]{t: t}, nil
}

// Insert appends value to the bucket of key.
func (m *MultiMap[K, V]) Insert(key K, value V) {
	m.t.insert(key, value, false)
}

// Search returns the bucket of key in insertion order. The returned slice must
// not be modified.
func (m *MultiMap[K, V]) Search(key K) ([]V, bool) {
	return m.t.search(key)
}

// RangeSearch returns the values of all keys in [from, to), ascending by key
// and in insertion order within a key.
func (m *MultiMap[K, V]) RangeSearch(from, to K) ([]V, error) {
	return m.t.rangeSearch(from, to)
}

// AscendRange calls fn for every key in [from, to) in ascending order until fn
// returns false. The bucket must not be modified.
func (m *MultiMap[K, V]) AscendRange(from, to K, fn func(key K, bucket []V) bool) error {
	return m.t.ascendRange(from, to, fn)
}

// All iterates all keys and their buckets in ascending key order.
func (m *MultiMap[K, V]) All() iter.Seq2[K, []V] {
	return m.t.all()
}

// Len returns the number of stored values.
func (m *MultiMap[K, V]) Len() int { return m.t.values }

// KeyCount returns the number of distinct keys.
func (m *MultiMap[K, V]) KeyCount() int { return m.t.keys }

// Height returns the number of node levels; a tree with only a root leaf has height 1.
func (m *MultiMap[K, V]) Height() int { return m.t.height }

// Degree returns the minimum degree of the tree.
func (m *MultiMap[K, V]) Degree() int { return m.t.degree }

// Graph returns the tree in Graphviz DOT format.
func (m *MultiMap[K, V]) Graph() string { return m.t.graph("btree") }

// Map is a B+Tree mapping every key to a single value; inserting an existing
// key overwrites its value.
//
// Write operations are not safe for concurrent use; once fully built, a Map may
// be read by any number of goroutines.
type Map[K, V any] struct {
	t *tree[K, V]
}

// NewMap creates a map of the given degree ordered by '<'.
func NewMap[K cmp.Ordered, V any](degree int) (*Map[K, V], error) {
	return NewMapFunc[K, V](degree, Less[K]())
}

// NewMapFunc creates a map of the given degree ordered by less.
func NewMapFunc[K, V any](degree int, less LessFunc[K]) (*Map[K, V], error) {
	t, err := newTree[K, V](degree, less)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{t: t}, nil
}

// Insert sets the value of key.
func (m *Map[K, V]) Insert(key K, value V) {
	m.t.insert(key, value, true)
}

// Search returns the value of key.
func (m *Map[K, V]) Search(key K) (V, bool) {
	bucket, ok := m.t.search(key)
	if !ok {
		var zero V
		return zero, false
	}
	return bucket[0], true
}

// RangeSearch returns the values of all keys in [from, to) in ascending key order.
func (m *Map[K, V]) RangeSearch(from, to K) ([]V, error) {
	return m.t.rangeSearch(from, to)
}

// All iterates all keys and values in ascending key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, bucket := range m.t.all() {
			if !yield(k, bucket[0]) {
				return
			}
		}
	}
}

// Len returns the number of keys.
func (m *Map[K, V]) Len() int { return m.t.keys }

// Height returns the number of node levels; a tree with only a root leaf has height 1.
func (m *Map[K, V]) Height() int { return m.t.height }

// Graph returns the tree in Graphviz DOT format.
func (m *Map[K, V]) Graph() string { return m.t.graph("btree") }
