package redis

import (
	"context"
	"fmt"

	"github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/job"
)

// GetJob implements engine.Observer.
func (c *Client) GetJob(ctx context.Context, queue string, id int64) (*job.Job, error) {
	v, err := c.guard(func() (interface{}, error) {
		return c.rdb.HGetAll(ctx, jobKey(queue, id)).Result()
	})
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]string)
	if len(m) == 0 {
		return nil, engine.ErrJobNotFound
	}
	return decodeJob(queue, id, m)
}

func statusSetKey(queue string, status job.Status) (string, error) {
	switch status {
	case job.Waiting:
		return waitKey(queue), nil
	case job.Delayed:
		return delayedKey(queue), nil
	case job.Active:
		return activeKey(queue), nil
	case job.Completed:
		return completedKey(queue), nil
	case job.Failed:
		return failedKey(queue), nil
	default:
		return "", engine.ErrBadStatus
	}
}

// Inspect implements engine.Observer.
func (c *Client) Inspect(ctx context.Context, queue string, status job.Status, from, to int64) ([]*job.Job, error) {
	key, err := statusSetKey(queue, status)
	if err != nil {
		return nil, err
	}
	if to <= from {
		return nil, nil
	}
	v, err := c.guard(func() (interface{}, error) {
		return c.rdb.ZRange(ctx, key, from, to-1).Result()
	})
	if err != nil {
		return nil, err
	}
	ids, _ := v.([]string)
	ret := make([]*job.Job, 0, len(ids))
	for _, idStr := range ids {
		var id int64
		if _, err := fmt.Sscan(idStr, &id); err != nil {
			continue
		}
		jb, err := c.GetJob(ctx, queue, id)
		if err != nil {
			continue
		}
		ret = append(ret, jb)
	}
	return ret, nil
}

// Stats implements engine.Observer.
func (c *Client) Stats(ctx context.Context, queue string) (engine.Stats, error) {
	paused, err := c.IsPaused(ctx, queue)
	if err != nil {
		return engine.Stats{}, err
	}
	counts := make([]int64, 5)
	keys := []string{waitKey(queue), activeKey(queue), completedKey(queue), failedKey(queue), delayedKey(queue)}
	for i, key := range keys {
		v, err := c.guard(func() (interface{}, error) {
			return c.rdb.ZCard(ctx, key).Result()
		})
		if err != nil {
			return engine.Stats{}, err
		}
		counts[i], _ = v.(int64)
	}
	return engine.Stats{
		Waiting:   counts[0],
		Active:    counts[1],
		Completed: counts[2],
		Failed:    counts[3],
		Delayed:   counts[4],
		Paused:    paused,
	}, nil
}
