// Package voronoi builds a multi-level Voronoi partition of a point set by
// repeatedly assigning points to their nearest remaining pivot.
//
// It is an eager alternative to the cluster builders: cells hold their objects
// together with distances to a base pivot, and every cell computes its own
// storage keys once normalized.
//
//	cells, err := voronoi.Build(ctx, 2, set, points, distance.PointDistance)
//	_ = voronoi.NormalizeAll(cells)
//	key, err := cells[0].Key(objectIndex)
package voronoi
