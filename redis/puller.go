package redis

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/job"
)

// PromoteDue implements engine.Puller.
func (c *Client) PromoteDue(ctx context.Context, queue string, now time.Time) ([]int64, error) {
	v, err := c.guard(func() (interface{}, error) {
		return promoteScript.Run(ctx, c.rdb,
			[]string{delayedKey(queue), waitKey(queue)},
			queue, now.UnixMilli(), 1000,
		).Result()
	})
	if err != nil {
		return nil, err
	}
	raw, _ := v.([]interface{})
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, _ := strconv.ParseInt(fmt.Sprint(r), 10, 64)
		ids = append(ids, id)
	}
	return ids, nil
}

// Pop implements engine.Puller. The rate limit applied, if any, is the
// one last written for queue by ConfigureQueue.
func (c *Client) Pop(ctx context.Context, queue string, lease time.Duration, now time.Time) (*job.Job, engine.PopStatus, time.Duration, error) {
	v, err := c.guard(func() (interface{}, error) {
		return popScript.Run(ctx, c.rdb,
			[]string{waitKey(queue), activeKey(queue), rlTokensKey(queue), rlResetKey(queue), pausedKey(queue), rlConfigKey(queue)},
			queue, lease.Milliseconds(), now.UnixMilli(),
		).Result()
	})
	if err != nil {
		return nil, engine.PopEmpty, 0, err
	}
	res, ok := v.([]interface{})
	if !ok || len(res) == 0 {
		return nil, engine.PopEmpty, 0, fmt.Errorf("redis: unexpected pop result %v", v)
	}
	status, _ := res[0].(int64)
	switch status {
	case 0:
		return nil, engine.PopEmpty, 0, nil
	case 2:
		ms, _ := res[1].(int64)
		return nil, engine.PopThrottled, time.Duration(ms) * time.Millisecond, nil
	}
	idStr := fmt.Sprint(res[1])
	id, _ := strconv.ParseInt(idStr, 10, 64)
	fields := fieldsToMap(res[2:])
	jb, err := decodeJob(queue, id, fields)
	if err != nil {
		return nil, engine.PopEmpty, 0, err
	}
	return jb, engine.PopOK, 0, nil
}

// ExtendLease implements engine.Puller.
func (c *Client) ExtendLease(ctx context.Context, queue string, id int64, lease time.Duration, now time.Time) error {
	v, err := c.guard(func() (interface{}, error) {
		return extendLeaseScript.Run(ctx, c.rdb,
			[]string{jobKey(queue, id), activeKey(queue)},
			id, lease.Milliseconds(), now.UnixMilli(),
		).Result()
	})
	if err != nil {
		return err
	}
	if n, _ := v.(int64); n == 0 {
		return engine.ErrLockLost
	}
	return nil
}

// Complete implements engine.Puller.
func (c *Client) Complete(ctx context.Context, queue string, id int64, result []byte, now time.Time) error {
	v, err := c.guard(func() (interface{}, error) {
		return completeScript.Run(ctx, c.rdb,
			[]string{jobKey(queue, id), activeKey(queue), completedKey(queue)},
			id, base64.StdEncoding.EncodeToString(result), now.UnixMilli(),
		).Result()
	})
	if err != nil {
		return err
	}
	if n, _ := v.(int64); n == 0 {
		return engine.ErrLockLost
	}
	return nil
}

// Fail implements engine.Puller.
func (c *Client) Fail(ctx context.Context, queue string, id int64, lastErr string, permanent bool, backoff time.Duration, now time.Time) error {
	v, err := c.guard(func() (interface{}, error) {
		return failScript.Run(ctx, c.rdb,
			[]string{jobKey(queue, id), activeKey(queue), delayedKey(queue), failedKey(queue)},
			id, now.UnixMilli(), backoff.Milliseconds(), boolFlag(permanent), lastErr,
		).Result()
	})
	if err != nil {
		return err
	}
	if n, _ := v.(int64); n == 0 {
		return engine.ErrLockLost
	}
	return nil
}

// ReclaimStalled implements engine.Puller.
func (c *Client) ReclaimStalled(ctx context.Context, queue string, maxStalls int, now time.Time) ([]*job.Job, error) {
	v, err := c.guard(func() (interface{}, error) {
		return reclaimStalledScript.Run(ctx, c.rdb,
			[]string{activeKey(queue), waitKey(queue), failedKey(queue)},
			queue, now.UnixMilli(), maxStalls, 1000,
		).Result()
	})
	if err != nil {
		return nil, err
	}
	ids, _ := v.([]interface{})
	if len(ids) == 0 {
		return nil, nil
	}
	ret := make([]*job.Job, 0, len(ids))
	for _, raw := range ids {
		idStr := fmt.Sprint(raw)
		id, _ := strconv.ParseInt(idStr, 10, 64)
		jb, err := c.GetJob(ctx, queue, id)
		if err != nil {
			continue
		}
		ret = append(ret, jb)
	}
	return ret, nil
}

// Retry implements engine.Puller.
func (c *Client) Retry(ctx context.Context, queue string, id int64) error {
	v, err := c.guard(func() (interface{}, error) {
		return retryScript.Run(ctx, c.rdb,
			[]string{jobKey(queue, id), waitKey(queue), failedKey(queue)},
			id,
		).Result()
	})
	if err != nil {
		return err
	}
	if n, _ := v.(int64); n == 0 {
		return engine.ErrBadStatus
	}
	return nil
}

// RemoveJob implements engine.Puller.
func (c *Client) RemoveJob(ctx context.Context, queue string, id int64, now time.Time) error {
	v, err := c.guard(func() (interface{}, error) {
		return removeJobScript.Run(ctx, c.rdb,
			[]string{jobKey(queue, id), waitKey(queue), delayedKey(queue), activeKey(queue), completedKey(queue), failedKey(queue)},
			queue, id, now.UnixMilli(),
		).Result()
	})
	if err != nil {
		return err
	}
	if n, _ := v.(int64); n == 0 {
		return engine.ErrBusy
	}
	return nil
}

// ConfigureQueue persists queue's rate-limit configuration so that Pop's
// admission check, running server-side, can honor it without the caller
// supplying it on every call. Passing a nil limit clears it.
func (c *Client) ConfigureQueue(ctx context.Context, queue string, limit *engine.RateLimit) error {
	key := rlConfigKey(queue)
	if limit == nil || limit.Max <= 0 {
		_, err := c.guard(func() (interface{}, error) {
			return c.rdb.Del(ctx, key).Result()
		})
		return err
	}
	_, err := c.guard(func() (interface{}, error) {
		return c.rdb.HSet(ctx, key, "max", limit.Max, "window_ms", limit.Window.Milliseconds()).Result()
	})
	return err
}

// Pause implements engine.Puller.
func (c *Client) Pause(ctx context.Context, queue string) error {
	_, err := c.guard(func() (interface{}, error) {
		return c.rdb.Set(ctx, pausedKey(queue), "1", 0).Result()
	})
	return err
}

// Resume implements engine.Puller.
func (c *Client) Resume(ctx context.Context, queue string) error {
	_, err := c.guard(func() (interface{}, error) {
		return c.rdb.Del(ctx, pausedKey(queue)).Result()
	})
	return err
}

// IsPaused implements engine.Puller.
func (c *Client) IsPaused(ctx context.Context, queue string) (bool, error) {
	v, err := c.guard(func() (interface{}, error) {
		return c.rdb.Exists(ctx, pausedKey(queue)).Result()
	})
	if err != nil {
		return false, err
	}
	n, _ := v.(int64)
	return n == 1, nil
}
