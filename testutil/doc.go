// Package testutil provides testing utilities for mindex.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded generators for points and vectors and a brute-force
// range search used as ground truth.
//
// # Random Data Generation
//
//	rng := testutil.NewRNG(seed)
//	points := rng.Points(100, 0, 10)       // uniform in [0, 10)²
//	vecs := rng.UniformVectors(100, 8)     // uniform in [0, 1)
//
// # Exact Search (Ground Truth)
//
//	ids := testutil.ExactRange(query, points, radius, distance.PointDistance)
package testutil
