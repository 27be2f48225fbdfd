package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mindex/cluster"
)

func TestGetPut(t *testing.T) {
	qc := Get()
	require.NotNil(t, qc)

	qc.Candidates.AddMany([]uint32{1, 5, 9})
	qc.Queue = append(qc.Queue, 1, 2, 3)
	qc.Used.Set(4)
	Put(qc)

	qc = Get()
	assert.True(t, qc.Candidates.IsEmpty())
	assert.Empty(t, qc.Queue)
	assert.Equal(t, uint(0), qc.Used.Count())
	Put(qc)
}

func TestPut_DropsLargeCandidateSets(t *testing.T) {
	qc := Get()
	qc.Candidates.AddRange(0, MaxRetainedCandidates+1)

	large := qc.Candidates
	Put(qc)

	assert.NotSame(t, large, qc.Candidates)
	assert.True(t, qc.Candidates.IsEmpty())
}

func TestMarkPath(t *testing.T) {
	p, err := cluster.NewPathIndex(5)
	require.NoError(t, err)
	for _, d := range []int{3, 0, 4} {
		p, err = p.AddLevel(d)
		require.NoError(t, err)
	}

	qc := Get()
	defer Put(qc)

	qc.Used.Set(2)
	qc.MarkPath(p, 2)

	assert.True(t, qc.IsUsed(3))
	assert.True(t, qc.IsUsed(0))
	assert.False(t, qc.IsUsed(4))
	assert.False(t, qc.IsUsed(2))

	// Slots beyond the bitset length read as unused.
	assert.False(t, qc.IsUsed(1000))
}
