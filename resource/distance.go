package resource

import (
	"context"

	"github.com/hupe1980/mindex/distance"
)

// LimitDistance wraps fn so that every evaluation waits on the controller's
// distance rate limit. fn is returned unchanged when no limit is configured.
func LimitDistance[D any](ctx context.Context, c *Controller, fn distance.Func[D]) distance.Func[D] {
	if c == nil || c.distLimiter == nil {
		return fn
	}
	return func(a, b D) (float64, error) {
		if err := c.AcquireDistance(ctx, 1); err != nil {
			return 0, err
		}
		return fn(a, b)
	}
}
