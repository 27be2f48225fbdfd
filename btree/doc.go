// Package btree provides an in-memory B+Tree with sibling-linked leaves, as an
// ordered Map (one value per key) and an ordered MultiMap (a bucket of values
// per key).
//
// The ordering is fixed at construction, either the natural '<' of an ordered
// key type or a LessFunc. A tree of degree t holds at most 2t-1 keys per node
// and every non-root node at least t-1.
//
// Range scans descend once to the first leaf and then follow the sibling links:
//
//	m, _ := btree.NewMultiMap[float64, uint32](32)
//	m.Insert(1.25, 7)
//	ids, _ := m.RangeSearch(1.0, 2.0)
package btree
