package cluster

import (
	"fmt"
)

// Router exposes, per object, the pivot slots ordered by ascending distance.
// It is satisfied by *pivot.Table.
type Router interface {
	// Len returns the number of objects.
	Len() int
	// SlotAt returns the slot of the k-th nearest pivot of object o.
	SlotAt(o, k int) int
	// FirstPivotDistance returns the normalized distance of o to its nearest pivot.
	FirstPivotDistance(o int) float64
}

// Sink receives the storage key of every object once its leaf is final.
type Sink func(key float64, object int) error

// Builder assigns every object of a router to a leaf of an empty tree.
//
// Once an object's leaf is final, its key is leaf.Path.Value() plus its nearest
// pivot distance; the key is passed to sink and propagated to every ancestor.
type Builder interface {
	Build(tree *Tree, router Router, sink Sink) error
}

// Key returns the storage key of an object with the given nearest pivot
// distance held by the leaf.
func Key(leaf *Node, firstPivotDistance float64) float64 {
	return float64(leaf.Path.Value()) + firstPivotDistance
}

func checkEmpty(tree *Tree, router Router) error {
	if tree == nil || router == nil {
		return fmt.Errorf("%w: tree and router are required", ErrInvalidArgument)
	}
	if tree.Len() != 1 {
		return fmt.Errorf("%w: tree is not empty", ErrInvalidArgument)
	}
	return nil
}

// assignKeys emits the keys of all leaf objects, leaves in breadth-first order
// and objects in insertion order.
func assignKeys(tree *Tree, router Router, sink Sink) error {
	for _, id := range tree.Leaves() {
		leaf := tree.Node(id)
		for _, o := range leaf.objects {
			key := Key(leaf, router.FirstPivotDistance(o))
			if sink != nil {
				if err := sink(key, o); err != nil {
					return err
				}
			}
			tree.Propagate(id, key)
		}
	}
	return nil
}

// Static builds the tree breadth-first, level by level. At level d every object
// of a cluster is routed to the child keyed by its (d+1)-th nearest pivot, so all
// leaves end up at the tree's max level.
type Static struct{}

// Build implements Builder.
func (Static) Build(tree *Tree, router Router, sink Sink) error {
	if err := checkEmpty(tree, router); err != nil {
		return err
	}

	all := make([]int, router.Len())
	for o := range all {
		all[o] = o
	}

	type item struct {
		id      NodeID
		objects []int
	}

	queue := []item{{id: tree.Root(), objects: all}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		level := tree.Node(it.id).Level()
		if level == tree.maxLevel {
			tree.Node(it.id).objects = it.objects
			continue
		}

		kind := KindInternal
		if level+1 == tree.maxLevel {
			kind = KindLeaf
		}

		buckets := make([][]int, tree.radix)
		for _, o := range it.objects {
			slot := router.SlotAt(o, level)
			buckets[slot] = append(buckets[slot], o)
		}

		for slot, objects := range buckets {
			if len(objects) == 0 {
				continue
			}
			child, err := tree.addChild(it.id, slot, kind)
			if err != nil {
				return err
			}
			queue = append(queue, item{id: child, objects: objects})
		}
	}

	return assignKeys(tree, router, sink)
}

// Dynamic inserts one object at a time. A leaf below the max level that already
// holds LeafObjectsLimit objects is turned into an internal cluster, and its
// objects together with the incoming one are routed one level deeper.
type Dynamic struct {
	LeafObjectsLimit int
}

// Build implements Builder.
func (b Dynamic) Build(tree *Tree, router Router, sink Sink) error {
	if b.LeafObjectsLimit < 1 {
		return fmt.Errorf("%w: leaf objects limit %d", ErrInvalidArgument, b.LeafObjectsLimit)
	}
	if err := checkEmpty(tree, router); err != nil {
		return err
	}

	for o := range router.Len() {
		if err := b.insert(tree, router, tree.Root(), o); err != nil {
			return err
		}
	}

	return assignKeys(tree, router, sink)
}

func (b Dynamic) insert(tree *Tree, router Router, id NodeID, o int) error {
	for tree.Node(id).Kind == KindInternal {
		child, err := tree.childOrLeaf(id, router.SlotAt(o, tree.Node(id).Level()))
		if err != nil {
			return err
		}
		id = child
	}

	leaf := tree.Node(id)
	if len(leaf.objects) < b.LeafObjectsLimit || leaf.Level() == tree.maxLevel {
		leaf.objects = append(leaf.objects, o)
		return nil
	}

	moved := append(leaf.objects, o)
	leaf.objects = nil
	leaf.Kind = KindInternal

	for _, m := range moved {
		if err := b.insert(tree, router, id, m); err != nil {
			return err
		}
	}
	return nil
}
