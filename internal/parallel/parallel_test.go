package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mindex/resource"
)

func TestMap(t *testing.T) {
	results, err := Map(context.Background(), 4, 100, nil, func(_ context.Context, c int) (int, error) {
		return c * c, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 100)
	for i, r := range results {
		assert.Equal(t, i*i, r)
	}
}

func TestMap_Empty(t *testing.T) {
	results, err := Map(context.Background(), 4, 0, nil, func(_ context.Context, c int) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMap_FailureAbortsAll(t *testing.T) {
	boom := errors.New("boom")

	results, err := Map(context.Background(), 2, 50, nil, func(_ context.Context, c int) (int, error) {
		if c == 7 {
			return 0, boom
		}
		return c, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
}

func TestMap_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Map(ctx, 2, 10, nil, func(_ context.Context, c int) (int, error) {
		return c, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMap_SharedWorkers(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxWorkers: 1})

	var running, peak atomic.Int32
	_, err := Map(context.Background(), 8, 32, rc, func(_ context.Context, c int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		running.Add(-1)
		return c, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestChunks(t *testing.T) {
	assert.Equal(t, 0, Chunks(0, 10))
	assert.Equal(t, 1, Chunks(10, 10))
	assert.Equal(t, 2, Chunks(11, 10))
	assert.Equal(t, 1, Chunks(5, 0))
	assert.Positive(t, Workers(0))
	assert.Equal(t, 3, Workers(3))
}
