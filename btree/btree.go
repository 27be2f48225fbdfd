package btree

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
)

var (
	// ErrInvalidArgument is wrapped by every argument validation error of this package.
	ErrInvalidArgument = errors.New("btree: invalid argument")

	// ErrInvalidDegree is returned for a degree below 2.
	ErrInvalidDegree = fmt.Errorf("%w: degree must be at least 2", ErrInvalidArgument)

	// ErrInvalidRange is returned by range scans whose lower bound exceeds the upper bound.
	ErrInvalidRange = fmt.Errorf("%w: range start is after range end", ErrInvalidArgument)
)

// LessFunc determines how to order keys. It should implement a strict ordering,
// and should return true if within that ordering, 'a' < 'b'.
type LessFunc[K any] func(a, b K) bool

// Less returns a default LessFunc that uses the '<' operator.
func Less[K cmp.Ordered]() LessFunc[K] {
	return cmp.Less[K]
}

// node is either an internal node (children set) or a leaf (buckets set).
// A node holds at most 2*degree-1 keys.
type node[K, V any] struct {
	leaf     bool
	keys     []K
	children []*node[K, V] // len(keys)+1 for internal nodes
	buckets  [][]V         // one non-empty bucket per key for leaves
	next     *node[K, V]   // next leaf in key order
}

// tree is the B+Tree shared by Map and MultiMap. Splits happen top-down before
// descending, so an insertion never has to walk back up.
type tree[K, V any] struct {
	root   *node[K, V]
	degree int
	less   LessFunc[K]
	keys   int
	values int
	height int
}

func newTree[K, V any](degree int, less LessFunc[K]) (*tree[K, V], error) {
	if degree < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDegree, degree)
	}
	if less == nil {
		return nil, fmt.Errorf("%w: less function is nil", ErrInvalidArgument)
	}
	return &tree[K, V]{
		root:   &node[K, V]{leaf: true},
		degree: degree,
		less:   less,
		height: 1,
	}, nil
}

func (t *tree[K, V]) maxKeys() int { return 2*t.degree - 1 }

// upperBound returns the number of keys in n that are <= key, which is the
// index of the child covering key.
func (t *tree[K, V]) upperBound(n *node[K, V], key K) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return t.less(key, n.keys[i])
	})
}

// lowerBound returns the index of the first key in n that is >= key.
func (t *tree[K, V]) lowerBound(n *node[K, V], key K) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return !t.less(n.keys[i], key)
	})
}

func (t *tree[K, V]) equal(a, b K) bool {
	return !t.less(a, b) && !t.less(b, a)
}

// insert stores value under key. With replace set an existing bucket is
// replaced, otherwise value is appended to it.
func (t *tree[K, V]) insert(key K, value V, replace bool) {
	if len(t.root.keys) == t.maxKeys() {
		old := t.root
		t.root = &node[K, V]{children: []*node[K, V]{old}}
		t.splitChild(t.root, 0)
		t.height++
	}

	n := t.root
	for !n.leaf {
		i := t.upperBound(n, key)
		if len(n.children[i].keys) == t.maxKeys() {
			t.splitChild(n, i)
			if !t.less(key, n.keys[i]) {
				i++
			}
		}
		n = n.children[i]
	}

	i := t.lowerBound(n, key)
	if i < len(n.keys) && t.equal(n.keys[i], key) {
		if replace {
			t.values -= len(n.buckets[i]) - 1
			n.buckets[i] = []V{value}
			return
		}
		n.buckets[i] = append(n.buckets[i], value)
		t.values++
		return
	}

	var zeroK K
	n.keys = append(n.keys, zeroK)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = key

	n.buckets = append(n.buckets, nil)
	copy(n.buckets[i+1:], n.buckets[i:])
	n.buckets[i] = []V{value}

	t.keys++
	t.values++
}

// splitChild splits the full child i of parent into two nodes and inserts the
// separator into parent, which must not be full.
func (t *tree[K, V]) splitChild(parent *node[K, V], i int) {
	child := parent.children[i]
	d := t.degree

	var right *node[K, V]
	var separator K

	if child.leaf {
		// Leaves keep every key; the first key of the new sibling is copied up.
		right = &node[K, V]{
			leaf:    true,
			keys:    append([]K(nil), child.keys[d:]...),
			buckets: append([][]V(nil), child.buckets[d:]...),
			next:    child.next,
		}
		clear(child.buckets[d:])
		child.keys = child.keys[:d:d]
		child.buckets = child.buckets[:d:d]
		child.next = right
		separator = right.keys[0]
	} else {
		// The middle key of an internal node moves up.
		separator = child.keys[d-1]
		right = &node[K, V]{
			keys:     append([]K(nil), child.keys[d:]...),
			children: append([]*node[K, V](nil), child.children[d:]...),
		}
		clear(child.children[d:])
		child.keys = child.keys[: d-1 : d-1]
		child.children = child.children[:d:d]
	}

	var zeroK K
	parent.keys = append(parent.keys, zeroK)
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = separator

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right
}

// findLeaf returns the leaf whose key range covers key.
func (t *tree[K, V]) findLeaf(key K) *node[K, V] {
	n := t.root
	for !n.leaf {
		n = n.children[t.upperBound(n, key)]
	}
	return n
}

func (t *tree[K, V]) search(key K) ([]V, bool) {
	n := t.findLeaf(key)
	i := t.lowerBound(n, key)
	if i < len(n.keys) && t.equal(n.keys[i], key) {
		return n.buckets[i], true
	}
	return nil, false
}

// ascendRange calls fn for every key in [from, to) in ascending order until fn
// returns false.
func (t *tree[K, V]) ascendRange(from, to K, fn func(key K, bucket []V) bool) error {
	if t.less(to, from) {
		return ErrInvalidRange
	}

	n := t.findLeaf(from)
	i := t.lowerBound(n, from)
	for n != nil {
		for ; i < len(n.keys); i++ {
			if !t.less(n.keys[i], to) {
				return nil
			}
			if !fn(n.keys[i], n.buckets[i]) {
				return nil
			}
		}
		n, i = n.next, 0
	}
	return nil
}

func (t *tree[K, V]) rangeSearch(from, to K) ([]V, error) {
	var values []V
	err := t.ascendRange(from, to, func(_ K, bucket []V) bool {
		values = append(values, bucket...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (t *tree[K, V]) all() iter.Seq2[K, []V] {
	return func(yield func(K, []V) bool) {
		n := t.root
		for !n.leaf {
			n = n.children[0]
		}
		for ; n != nil; n = n.next {
			for i, k := range n.keys {
				if !yield(k, n.buckets[i]) {
					return
				}
			}
		}
	}
}

// graph renders the tree as Graphviz DOT with one record per node.
func (t *tree[K, V]) graph(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", name)
	sb.WriteString("  node [shape=record];\n")

	ids := map[*node[K, V]]int{}
	id := func(n *node[K, V]) int {
		if v, ok := ids[n]; ok {
			return v
		}
		ids[n] = len(ids)
		return ids[n]
	}

	queue := []*node[K, V]{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		fields := make([]string, len(n.keys))
		for i, k := range n.keys {
			if n.leaf {
				fields[i] = fmt.Sprintf("%v (%d)", k, len(n.buckets[i]))
			} else {
				fields[i] = fmt.Sprintf("%v", k)
			}
		}
		fmt.Fprintf(&sb, "  n%d [label=\"%s\"];\n", id(n), escapeRecord(strings.Join(fields, "|")))

		if n.leaf {
			if n.next != nil {
				fmt.Fprintf(&sb, "  n%d -> n%d [style=dashed];\n", id(n), id(n.next))
			}
			continue
		}
		for _, c := range n.children {
			fmt.Fprintf(&sb, "  n%d -> n%d;\n", id(n), id(c))
			queue = append(queue, c)
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeRecord(s string) string {
	return strings.NewReplacer(`"`, `\"`, "{", `\{`, "}", `\}`, "<", `\<`, ">", `\>`).Replace(s)
}
