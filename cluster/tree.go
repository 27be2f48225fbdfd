package cluster

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Kind distinguishes internal clusters from leaf clusters.
type Kind uint8

const (
	// KindInternal clusters route objects to children by their next nearest pivot.
	KindInternal Kind = iota
	// KindLeaf clusters hold objects.
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// NodeID addresses a cluster in its Tree.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is one cluster of the hierarchy.
type Node struct {
	Kind Kind
	Path PathIndex

	// BasePivot is the pivot slot chosen at level 1 of this branch; -1 for the root.
	BasePivot int

	Parent NodeID

	// KeyMin and KeyMax bound the keys of all objects stored beneath this node.
	// They start at +Inf and -Inf and are only ever tightened.
	KeyMin float64
	KeyMax float64

	children map[int]NodeID
	objects  []int
}

// Level returns the depth of the node; the root is at level 0.
func (n *Node) Level() int { return n.Path.Level() }

// Empty reports whether no key was ever propagated to the node.
func (n *Node) Empty() bool { return n.KeyMin > n.KeyMax }

// Objects returns the objects held by a leaf. The slice must not be modified.
func (n *Node) Objects() []int { return n.objects }

// Tree is an arena of clusters. The root is always an internal node at level 0.
//
// A Tree is built by a single goroutine and is read-only afterwards.
type Tree struct {
	nodes    []Node
	radix    int
	maxLevel int
}

// NewTree creates a tree with an empty root for radix pivots, whose leaves are
// at most maxLevel deep.
func NewTree(radix, maxLevel int) (*Tree, error) {
	root, err := NewPathIndex(radix)
	if err != nil {
		return nil, err
	}
	if maxLevel < 1 || maxLevel > radix {
		return nil, fmt.Errorf("%w: max level %d not in [1, %d]", ErrInvalidArgument, maxLevel, radix)
	}

	t := &Tree{radix: radix, maxLevel: maxLevel}
	t.nodes = append(t.nodes, Node{
		Kind:      KindInternal,
		Path:      root,
		BasePivot: -1,
		Parent:    NoNode,
		KeyMin:    math.Inf(1),
		KeyMax:    math.Inf(-1),
	})
	return t, nil
}

// Root returns the root cluster.
func (t *Tree) Root() NodeID { return 0 }

// Radix returns the number of pivots.
func (t *Tree) Radix() int { return t.radix }

// MaxLevel returns the maximum depth of a leaf.
func (t *Tree) MaxLevel() int { return t.maxLevel }

// Len returns the number of clusters including the root.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the cluster with the given ID. The pointer is invalidated by
// the next structural change of the tree.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// Child returns the child of id reached through the pivot slot.
func (t *Tree) Child(id NodeID, slot int) (NodeID, bool) {
	child, ok := t.nodes[id].children[slot]
	return child, ok
}

// Children returns the children of id ordered by pivot slot.
func (t *Tree) Children(id NodeID) []NodeID {
	n := &t.nodes[id]
	if len(n.children) == 0 {
		return nil
	}

	slots := make([]int, 0, len(n.children))
	for slot := range n.children {
		slots = append(slots, slot)
	}
	slices.Sort(slots)

	children := make([]NodeID, len(slots))
	for i, slot := range slots {
		children[i] = n.children[slot]
	}
	return children
}

// Propagate tightens the key bounds of id and all its ancestors by key.
func (t *Tree) Propagate(id NodeID, key float64) {
	for id != NoNode {
		n := &t.nodes[id]
		n.KeyMin = min(n.KeyMin, key)
		n.KeyMax = max(n.KeyMax, key)
		id = n.Parent
	}
}

func (t *Tree) addChild(parent NodeID, slot int, kind Kind) (NodeID, error) {
	p := &t.nodes[parent]
	if p.Kind != KindInternal {
		return NoNode, fmt.Errorf("%w: cluster %s is a leaf", ErrInvalidArgument, p.Path)
	}
	if _, ok := p.children[slot]; ok {
		return NoNode, fmt.Errorf("%w: cluster %s already has child %d", ErrInvalidArgument, p.Path, slot)
	}

	path, err := p.Path.AddLevel(slot)
	if err != nil {
		return NoNode, err
	}
	if path.Level() > t.maxLevel {
		return NoNode, fmt.Errorf("%w: level %d exceeds max level %d", ErrInvalidArgument, path.Level(), t.maxLevel)
	}

	base := p.BasePivot
	if parent == t.Root() {
		base = slot
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Kind:      kind,
		Path:      path,
		BasePivot: base,
		Parent:    parent,
		KeyMin:    math.Inf(1),
		KeyMax:    math.Inf(-1),
	})

	p = &t.nodes[parent]
	if p.children == nil {
		p.children = make(map[int]NodeID)
	}
	p.children[slot] = id
	return id, nil
}

// childOrLeaf returns the child of parent at slot, creating a leaf on first use.
func (t *Tree) childOrLeaf(parent NodeID, slot int) (NodeID, error) {
	if id, ok := t.Child(parent, slot); ok {
		return id, nil
	}
	return t.addChild(parent, slot, KindLeaf)
}

// Leaves returns all leaves in breadth-first order, siblings by pivot slot.
func (t *Tree) Leaves() []NodeID {
	var leaves []NodeID
	t.Walk(func(id NodeID, n *Node) bool {
		if n.Kind == KindLeaf {
			leaves = append(leaves, id)
		}
		return true
	})
	return leaves
}

// Walk visits the tree breadth-first, siblings by pivot slot. Returning false
// from fn skips the children of the visited node.
func (t *Tree) Walk(fn func(id NodeID, n *Node) bool) {
	queue := []NodeID{t.Root()}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n := &t.nodes[id]
		if !fn(id, n) {
			continue
		}
		if n.Kind == KindInternal {
			queue = append(queue, t.Children(id)...)
		}
	}
}

// Stats describes the shape of a tree.
type Stats struct {
	Clusters int
	Internal int
	Leaves   int
	Objects  int
	Depth    int

	// MaxLeafObjects is the size of the largest leaf.
	MaxLeafObjects int
}

// Stats returns shape statistics of the tree.
func (t *Tree) Stats() Stats {
	s := Stats{Clusters: len(t.nodes)}
	for i := range t.nodes {
		n := &t.nodes[i]
		switch n.Kind {
		case KindInternal:
			s.Internal++
		case KindLeaf:
			s.Leaves++
			s.Objects += len(n.objects)
			s.MaxLeafObjects = max(s.MaxLeafObjects, len(n.objects))
		}
		s.Depth = max(s.Depth, n.Level())
	}
	return s
}

// Graph returns the tree in Graphviz DOT format.
func (t *Tree) Graph() string {
	var sb strings.Builder
	sb.WriteString("digraph clusters {\n")
	sb.WriteString("  node [shape=box];\n")

	t.Walk(func(id NodeID, n *Node) bool {
		switch n.Kind {
		case KindInternal:
			fmt.Fprintf(&sb, "  c%d [label=\"%s\\nkeys=%s\"];\n", id, n.Path, formatBounds(n))
		case KindLeaf:
			fmt.Fprintf(&sb, "  c%d [label=\"%s\\nkeys=%s\\nobjects=%d\", style=rounded];\n", id, n.Path, formatBounds(n), len(n.objects))
		}
		if n.Parent != NoNode {
			fmt.Fprintf(&sb, "  c%d -> c%d [label=\"p%d\"];\n", n.Parent, id, n.Path.Last())
		}
		return true
	})

	sb.WriteString("}\n")
	return sb.String()
}

func formatBounds(n *Node) string {
	if n.Empty() {
		return "[]"
	}
	return fmt.Sprintf("[%.4f, %.4f]", n.KeyMin, n.KeyMax)
}
