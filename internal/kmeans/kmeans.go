package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/hupe1980/mindex/distance"
)

// ErrInvalidArgument is returned for unusable training input.
var ErrInvalidArgument = errors.New("kmeans: invalid argument")

// Train trains k centroids from vectors using Lloyd's algorithm.
//
// Centroids start at k distinct random vectors drawn from rng. fn assigns
// vectors to centroids; the update step takes the arithmetic mean, so fn should
// be a metric whose centroid is the mean (L2), although any metric converges to
// usable pivots.
func Train(ctx context.Context, vectors [][]float64, k int, fn distance.Func[[]float64], maxIter int, rng *rand.Rand) ([][]float64, error) {
	n := len(vectors)
	switch {
	case k < 1 || k > n:
		return nil, fmt.Errorf("%w: k=%d with %d vectors", ErrInvalidArgument, k, n)
	case maxIter < 1:
		return nil, fmt.Errorf("%w: max iterations %d", ErrInvalidArgument, maxIter)
	case fn == nil:
		return nil, fmt.Errorf("%w: distance function is nil", ErrInvalidArgument)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", distance.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	centroids := make([][]float64, k)
	perm := rng.Perm(n)
	for i := range centroids {
		centroids[i] = append([]float64(nil), vectors[perm[i]]...)
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([][]float64, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for range maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false

		// Assignment step
		for i, v := range vectors {
			best, _, err := Assign(v, centroids, fn)
			if err != nil {
				return nil, err
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		// Update step
		clear(counts)
		for _, s := range sums {
			clear(s)
		}

		for i, v := range vectors {
			c := assignments[i]
			for d, x := range v {
				sums[c][d] += x
			}
			counts[c]++
		}

		for j := range centroids {
			if counts[j] > 0 {
				scale := 1 / float64(counts[j])
				for d := range centroids[j] {
					centroids[j][d] = sums[j][d] * scale
				}
			} else {
				// Re-seed an empty cluster with a random vector.
				copy(centroids[j], vectors[rng.Intn(n)])
			}
		}
	}

	return centroids, nil
}

// Assign returns the index of the centroid closest to vec and its distance.
// Ties go to the lower index.
func Assign(vec []float64, centroids [][]float64, fn distance.Func[[]float64]) (int, float64, error) {
	best, bestDist := -1, math.Inf(1)
	for j, c := range centroids {
		d, err := fn(vec, c)
		if err != nil {
			return -1, 0, err
		}
		if d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 {
		return -1, 0, fmt.Errorf("%w: no centroids", ErrInvalidArgument)
	}
	return best, bestDist, nil
}
