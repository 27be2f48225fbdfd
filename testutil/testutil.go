package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/mindex/distance"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Rand returns a standalone *rand.Rand derived from the next value of r.
func (r *RNG) Rand() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewSource(r.rand.Int63()))
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Points generates num points with both coordinates in [minVal, maxVal).
func (r *RNG) Points(num int, minVal, maxVal float64) []distance.Point {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := maxVal - minVal
	points := make([]distance.Point, num)
	for i := range points {
		points[i] = distance.Point{
			X: minVal + r.rand.Float64()*span,
			Y: minVal + r.rand.Float64()*span,
		}
	}
	return points
}

// GridPoints generates num points on an integer grid of the given side length,
// which produces many duplicate keys and exact ties.
func (r *RNG) GridPoints(num, side int) []distance.Point {
	r.mu.Lock()
	defer r.mu.Unlock()

	points := make([]distance.Point, num)
	for i := range points {
		points[i] = distance.Point{
			X: float64(r.rand.Intn(side)),
			Y: float64(r.rand.Intn(side)),
		}
	}
	return points
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dimensions)
	vectors := make([][]float64, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float64()
		}
		vectors[i] = vec
	}

	return vectors
}

// ClusteredVectors generates vectors around random centroids in [0, 1).
// Useful for testing pruning on non-uniform data.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float64) [][]float64 {
	centroids := r.UniformVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	vectors := make([][]float64, num)

	for i := range num {
		centroid := centroids[i%clusters]
		vec := data[i*dim : (i+1)*dim]

		for j := range dim {
			vec[j] = centroid[j] + r.rand.NormFloat64()*spread
		}
		vectors[i] = vec
	}

	return vectors
}

// Floats generates num scalars in [minVal, maxVal).
func (r *RNG) Floats(num int, minVal, maxVal float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := maxVal - minVal
	values := make([]float64, num)
	for i := range values {
		values[i] = minVal + r.rand.Float64()*span
	}
	return values
}

// ExactRange returns the indexes of all objects within radius of query, in
// ascending order, by comparing against every object.
func ExactRange[D any](query D, objects []D, radius float64, fn distance.Func[D]) []int {
	var ids []int
	for i, o := range objects {
		d, err := fn(query, o)
		if err != nil {
			panic(err)
		}
		if d <= radius {
			ids = append(ids, i)
		}
	}
	return ids
}

// ExactMaximumDistance returns the largest pairwise distance among objects.
func ExactMaximumDistance[D any](objects []D, fn distance.Func[D]) float64 {
	var maximum float64
	for i := range objects {
		for j := i + 1; j < len(objects); j++ {
			d, err := fn(objects[i], objects[j])
			if err != nil {
				panic(err)
			}
			maximum = max(maximum, d)
		}
	}
	return maximum
}
