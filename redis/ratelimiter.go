package redis

import (
	"context"
	"fmt"
	"time"
)

// Acquire implements engine.RateLimiter standalone, for callers (such as
// an admin surface showing remaining budget) that want to probe or
// consume a queue's token bucket outside of the Pop path, which enforces
// the same bucket inline via the configuration ConfigureQueue writes.
func (c *Client) Acquire(ctx context.Context, queue string, max int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	v, err := c.guard(func() (interface{}, error) {
		return rateLimitScript.Run(ctx, c.rdb,
			[]string{rlTokensKey(queue), rlResetKey(queue)},
			now.UnixMilli(), max, window.Milliseconds(),
		).Result()
	})
	if err != nil {
		return false, 0, err
	}
	res, ok := v.([]interface{})
	if !ok || len(res) != 2 {
		return false, 0, fmt.Errorf("redis: unexpected rate limit result %v", v)
	}
	ok1, _ := res[0].(int64)
	retryMs, _ := res[1].(int64)
	return ok1 == 1, time.Duration(retryMs) * time.Millisecond, nil
}
