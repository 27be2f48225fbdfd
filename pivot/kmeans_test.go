package pivot

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/testutil"
)

// inertia sums the squared distances of vectors to their nearest pivot.
func inertia(t *testing.T, vectors [][]float64, pivots []Pivot[[]float64]) float64 {
	t.Helper()

	set, err := NewSet(pivots)
	require.NoError(t, err)
	table, err := Calculate(context.Background(), set, vectors, 1, distance.Euclidean)
	require.NoError(t, err)

	var sum float64
	for o := range vectors {
		d := table.FirstPivotDistance(o)
		sum += d * d
	}
	return sum
}

func TestSelectKMeans(t *testing.T) {
	vectors := testutil.NewRNG(21).ClusteredVectors(600, 2, 3, 0.01)

	pivots, err := SelectKMeans(context.Background(), vectors, 3, distance.Euclidean, DefaultKMeansIterations, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	require.Len(t, pivots, 3)
	for i, p := range pivots {
		assert.Equal(t, uint32(i), p.ID)
	}

	// Lloyd iterations start from the same draw as Select and never increase
	// the inertia.
	random := Select(vectors, 3, rand.New(rand.NewSource(5)))
	assert.LessOrEqual(t, inertia(t, vectors, pivots), inertia(t, vectors, random)+1e-9)
}

func TestSelectKMeans_Clamp(t *testing.T) {
	vectors := [][]float64{{0}, {1}}

	pivots, err := SelectKMeans(context.Background(), vectors, 5, distance.Euclidean, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, pivots, 2)

	_, err = SelectKMeans(context.Background(), nil, 5, distance.Euclidean, 5, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrNoPivots)
}
