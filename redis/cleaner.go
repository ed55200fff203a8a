package redis

import (
	"context"
	"time"

	"github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/job"
)

// Clean implements engine.Cleaner.
func (c *Client) Clean(ctx context.Context, queue string, status job.Status, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	var total int64
	statuses := []job.Status{job.Completed, job.Failed}
	if status != job.Unknown {
		if status != job.Completed && status != job.Failed {
			return 0, engine.ErrBadStatus
		}
		statuses = []job.Status{status}
	}
	for _, st := range statuses {
		key, _ := statusSetKey(queue, st)
		field := "ret_completion"
		if st == job.Failed {
			field = "ret_failure"
		}
		v, err := c.guard(func() (interface{}, error) {
			return cleanScript.Run(ctx, c.rdb, []string{key}, queue, cutoff, engine.CleanBatchSize, field).Result()
		})
		if err != nil {
			return total, err
		}
		n, _ := v.(int64)
		total += n
	}
	return total, nil
}
