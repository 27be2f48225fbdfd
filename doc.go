// Package mindex provides an in-memory metric-space index answering exact range
// queries ("all objects within radius r of q") for any object type with a
// distance function satisfying the triangle inequality.
//
// # Quick Start
//
//	pivots := pivot.Select(points, 8, rand.New(rand.NewSource(1)))
//
//	ix, _ := mindex.Static(pivots, distance.PointDistance).
//	    MaxLevel(3).
//	    Build()
//
//	_ = ix.AddAll(points)
//	_ = ix.Build(ctx)
//
//	near, _ := ix.RangeQuery(ctx, distance.Point{X: 1, Y: 2}, 0.5)
//
// # How It Works
//
// Every object is routed through a hierarchy of clusters by its nearest,
// second nearest, ... pivot. The route is encoded as an integer; adding the
// object's normalized distance to its nearest pivot gives a real-valued key,
// under which the object is stored in a B+Tree.
//
// A range query walks the cluster hierarchy and skips clusters using two
// triangle inequality bounds: a nearer unused pivot rules out a whole subtree,
// and a leaf's key range rules out the leaf. Surviving leaves are scanned as
// key windows in the B+Tree, candidates are filtered by their pivot distances,
// and only the remaining ones are compared with the exact distance.
//
// # Lifecycle
//
// Objects are added with Add or AddAll and indexed by one call to Build. After
// a successful Build the index is read-only and queries may run concurrently.
// A failed Build leaves the index unusable (ErrBuildFailed).
//
// # Clustering
//
// Static clustering (default) routes every object down to the max level.
// Dynamic clustering (WithDynamicClusters, Dynamic builder) splits a leaf only
// once it exceeds a size limit.
package mindex
