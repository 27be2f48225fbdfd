// Package distance provides the distance capability consumed by the metric index
// together with a few concrete metrics.
package distance

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when two vectors have different lengths.
	ErrDimensionMismatch = errors.New("distance: dimension mismatch")

	// ErrInvalidDistance is returned when a distance function yields a negative or NaN value.
	ErrInvalidDistance = errors.New("distance: invalid distance value")
)

// Func measures the distance between two objects.
//
// Implementations must be symmetric, non-negative, zero iff the objects are equal
// and satisfy the triangle inequality. A returned error aborts the operation that
// requested the distance.
type Func[D any] func(a, b D) (float64, error)

// Checked wraps fn so that negative, NaN or infinite results are reported as
// ErrInvalidDistance instead of silently corrupting the index.
func Checked[D any](fn Func[D]) Func[D] {
	return func(a, b D) (float64, error) {
		d, err := fn(a, b)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidDistance, d)
		}
		return d, nil
	}
}

// Euclidean calculates the L2 distance between two vectors.
func Euclidean(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Manhattan calculates the L1 distance between two vectors.
func Manhattan(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum, nil
}

// Chebyshev calculates the L-infinity distance between two vectors.
func Chebyshev(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var maxDiff float64
	for i := range a {
		maxDiff = math.Max(maxDiff, math.Abs(a[i]-b[i]))
	}
	return maxDiff, nil
}

// Scalar is the absolute difference of two numbers.
func Scalar(a, b float64) (float64, error) {
	return math.Abs(a - b), nil
}

// Point is a point in the plane.
type Point struct {
	X, Y float64
}

// Distance returns the Euclidean distance to o.
func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// PointDistance adapts Point.Distance to Func.
func PointDistance(a, b Point) (float64, error) {
	return a.Distance(b), nil
}

// Metric represents a distance metric over float64 vectors.
type Metric int

const (
	MetricL2 Metric = iota
	MetricL1
	MetricChebyshev
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricL1:
		return "L1"
	case MetricChebyshev:
		return "Chebyshev"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses a metric name as produced by Metric.String (case-insensitive).
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclidean":
		return MetricL2, nil
	case "l1", "manhattan":
		return MetricL1, nil
	case "chebyshev", "linf":
		return MetricChebyshev, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Provider returns the distance function for the given metric.
//
// Squared L2 is not offered: it violates the triangle inequality the index relies on.
func Provider(m Metric) (Func[[]float64], error) {
	switch m {
	case MetricL2:
		return Euclidean, nil
	case MetricL1:
		return Manhattan, nil
	case MetricChebyshev:
		return Chebyshev, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
