package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	// Test with limit
	c := NewController(Config{MemoryLimitBytes: 100})

	err := c.AcquireMemory(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.MemoryUsage())

	err = c.AcquireMemory(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// TryAcquire 20 (should fail)
	ok := c.TryAcquireMemory(20)
	assert.False(t, ok)
	assert.Equal(t, int64(90), c.MemoryUsage())
	assert.ErrorIs(t, c.ReserveMemory(20), ErrMemoryLimit)

	// Acquire 20 (should block/timeout)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.AcquireMemory(ctx, 20)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.ReserveMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	err := c.AcquireMemory(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})

	require.NoError(t, c.AcquireWorker(context.Background()))
	require.NoError(t, c.AcquireWorker(context.Background()))
	assert.False(t, c.TryAcquireWorker())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.DeadlineExceeded)

	c.ReleaseWorker()
	assert.True(t, c.TryAcquireWorker())
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireMemory(context.Background(), 10))
	assert.True(t, c.TryAcquireMemory(10))
	assert.NoError(t, c.AcquireWorker(context.Background()))
	assert.True(t, c.TryAcquireWorker())
	assert.NoError(t, c.AcquireDistance(context.Background(), 10))
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, Config{}, c.Config())
	c.ReleaseMemory(10)
	c.ReleaseWorker()
}

func TestLimitDistance(t *testing.T) {
	calls := 0
	fn := func(a, b int) (float64, error) {
		calls++
		return float64(a - b), nil
	}

	t.Run("Unlimited", func(t *testing.T) {
		c := NewController(Config{})
		limited := LimitDistance(context.Background(), c, fn)
		d, err := limited(3, 1)
		require.NoError(t, err)
		assert.Equal(t, 2.0, d)
	})

	t.Run("Canceled", func(t *testing.T) {
		c := NewController(Config{DistanceEvalsPerSec: 1})
		ctx, cancel := context.WithCancel(context.Background())
		limited := LimitDistance(ctx, c, fn)

		// Burst of one token is available immediately.
		_, err := limited(1, 1)
		require.NoError(t, err)

		cancel()
		_, err = limited(1, 1)
		assert.Error(t, err)
	})
}
