package redis

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/cronspec"
	"github.com/kvqueue/jobqueue/job"
)

func (c *Client) pushArgs(queue, kind string, payload []byte, opts job.EnqueueOptions, now time.Time) []interface{} {
	return []interface{}{
		queue, kind, base64.StdEncoding.EncodeToString(payload),
		strconv.Itoa(opts.PriorityClass), strconv.Itoa(opts.Attempts),
		string(opts.Backoff.Strategy), strconv.FormatInt(opts.Backoff.BaseMs, 10), strconv.FormatInt(opts.Backoff.MaxMs, 10),
		strconv.FormatInt(opts.TimeoutMs, 10), opts.DelayMs, now.UnixMilli(),
		boolFlag(opts.RetainOnCompletion), boolFlag(opts.RetainOnFailure),
		opts.DedupKey, opts.RepeatID,
	}
}

// Push implements engine.Pusher.
func (c *Client) Push(ctx context.Context, queue, kind string, payload []byte, opts job.EnqueueOptions) (int64, error) {
	now := time.Now()
	v, err := c.guard(func() (interface{}, error) {
		return pushScript.Run(ctx, c.rdb,
			[]string{idKey(queue), waitKey(queue), delayedKey(queue)},
			c.pushArgs(queue, kind, payload, opts, now)...,
		).Result()
	})
	if err != nil {
		return 0, err
	}
	res, ok := v.([]interface{})
	if !ok || len(res) != 2 {
		return 0, fmt.Errorf("redis: unexpected push result %v", v)
	}
	status, _ := res[0].(int64)
	idStr := fmt.Sprint(res[1])
	id, _ := strconv.ParseInt(idStr, 10, 64)
	if status == 0 {
		return id, engine.ErrDuplicate
	}
	return id, nil
}

// PushRepeatable implements engine.Pusher.
func (c *Client) PushRepeatable(ctx context.Context, queue, kind string, payload []byte, spec job.RepeatSpec, opts job.EnqueueOptions) (string, error) {
	repeatID := uuid.NewString()
	tmpl := job.RepeatTemplate{
		ID:      repeatID,
		Queue:   queue,
		Kind:    kind,
		Payload: payload,
		Spec:    spec,
		Opts:    opts,
	}
	if _, err := c.Register(ctx, queue, tmpl); err != nil {
		return "", err
	}
	cronSpec, err := cronspec.Parse(spec.Expression, spec.Timezone)
	if err != nil {
		return "", err
	}
	now := time.Now()
	next := cronSpec.Next(now)
	delay := next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	opts.DelayMs = delay.Milliseconds()
	opts.RepeatID = repeatID
	id, err := c.Push(ctx, queue, kind, payload, opts)
	if err != nil {
		return "", err
	}
	if err := c.SetLive(ctx, queue, repeatID, id, next); err != nil {
		return "", err
	}
	return repeatID, nil
}
