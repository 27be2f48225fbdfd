// Package distance provides the distance capability used by the metric index.
//
// The index never inspects objects; it only calls a Func. Any function that is
// symmetric, non-negative, zero for equal objects and satisfies the triangle
// inequality works.
//
// # Supported Metrics
//
//   - MetricL2: Euclidean distance
//   - MetricL1: Manhattan distance
//   - MetricChebyshev: maximum coordinate difference
//
// # Usage
//
//	fn, _ := distance.Provider(distance.MetricL2)
//	d, err := fn(a, b)
package distance
