// Package cluster implements the pivot-routed cluster hierarchy of the index.
//
// Every object is routed from the root through the children keyed by its
// nearest, second nearest, ... pivot. The route is encoded as a PathIndex whose
// integer value, plus the object's nearest pivot distance, forms the object's
// storage key. Clusters live in an arena (Tree) and refer to each other by NodeID.
//
// Two builders are provided: Static routes all objects level by level down to the
// max level; Dynamic inserts objects one at a time and only splits a leaf when it
// overflows.
package cluster
