// Package kmeans implements k-means clustering for pivot selection.
//
// Centroids of well separated clusters make pivots whose Voronoi cells follow
// the data, which tightens the cluster hierarchy of the index.
package kmeans
