package pivot

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/internal/kmeans"
)

// DefaultKMeansIterations bounds the Lloyd iterations of SelectKMeans.
const DefaultKMeansIterations = 25

// SelectKMeans picks n pivots with IDs 0..n-1 at the k-means centroids of
// vectors. If n exceeds len(vectors), every vector becomes a pivot.
//
// Centroids need not be members of the corpus; any point of the vector space
// is a valid pivot.
func SelectKMeans(ctx context.Context, vectors [][]float64, n int, fn distance.Func[[]float64], maxIter int, rng *rand.Rand) ([]Pivot[[]float64], error) {
	n = min(n, len(vectors))
	if n <= 0 {
		return nil, ErrNoPivots
	}

	centroids, err := kmeans.Train(ctx, vectors, n, fn, maxIter, rng)
	if err != nil {
		return nil, fmt.Errorf("select pivots: %w", err)
	}

	pivots := make([]Pivot[[]float64], n)
	for i, c := range centroids {
		pivots[i] = New(uint32(i), c)
	}
	return pivots, nil
}
