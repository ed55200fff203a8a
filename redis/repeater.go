package redis

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/job"
)

// Register implements engine.Repeater.
func (c *Client) Register(ctx context.Context, queue string, tmpl job.RepeatTemplate) (string, error) {
	key := repeatKey(queue, tmpl.ID)
	_, err := c.guard(func() (interface{}, error) {
		pipe := c.rdb.TxPipeline()
		pipe.HSet(ctx, key,
			"id", tmpl.ID, "queue", queue, "kind", tmpl.Kind,
			"payload_b64", base64.StdEncoding.EncodeToString(tmpl.Payload),
			"cron_expr", tmpl.Spec.Expression, "cron_tz", tmpl.Spec.Timezone,
			"attempts", tmpl.Opts.Attempts,
			"backoff_strategy", string(tmpl.Opts.Backoff.Strategy),
			"backoff_base_ms", tmpl.Opts.Backoff.BaseMs,
			"backoff_max_ms", tmpl.Opts.Backoff.MaxMs,
			"priority_class", tmpl.Opts.PriorityClass,
			"timeout_ms", tmpl.Opts.TimeoutMs,
			"retain_completion", boolFlag(tmpl.Opts.RetainOnCompletion),
			"retain_failure", boolFlag(tmpl.Opts.RetainOnFailure),
			"dedup_key", tmpl.Opts.DedupKey,
			"last_fire_ms", "0", "live_job_id", "0",
		)
		pipe.SAdd(ctx, repeatIndexKey(queue), tmpl.ID)
		return pipe.Exec(ctx)
	})
	if err != nil {
		return "", err
	}
	return tmpl.ID, nil
}

// SetLive implements engine.Repeater.
func (c *Client) SetLive(ctx context.Context, queue, repeatID string, jobID int64, firedAt time.Time) error {
	v, err := c.guard(func() (interface{}, error) {
		return repeatSetLiveScript.Run(ctx, c.rdb,
			[]string{repeatKey(queue, repeatID)},
			jobID, firedAt.UnixMilli(),
		).Result()
	})
	if err != nil {
		return err
	}
	if n, _ := v.(int64); n == 0 {
		return errors.New("redis: repeat template already has a live instance")
	}
	return nil
}

// CompleteLive implements engine.Repeater.
func (c *Client) CompleteLive(ctx context.Context, queue, repeatID string, jobID int64) (time.Time, bool, error) {
	v, err := c.guard(func() (interface{}, error) {
		return repeatCompleteLiveScript.Run(ctx, c.rdb,
			[]string{repeatKey(queue, repeatID)},
			jobID,
		).Result()
	})
	if err != nil {
		return time.Time{}, false, err
	}
	res, ok := v.([]interface{})
	if !ok || len(res) != 2 {
		return time.Time{}, false, errors.New("redis: unexpected complete-live result")
	}
	status, _ := res[0].(int64)
	if status == 0 {
		return time.Time{}, false, nil
	}
	lastFireStr, _ := res[1].(string)
	ms, _ := strconv.ParseInt(lastFireStr, 10, 64)
	return msToTime(ms), true, nil
}

func decodeRepeatTemplate(queue, id string, m map[string]string) *job.RepeatTemplate {
	payload, _ := base64.StdEncoding.DecodeString(m["payload_b64"])
	return &job.RepeatTemplate{
		ID:      id,
		Queue:   queue,
		Kind:    m["kind"],
		Payload: payload,
		Spec: job.RepeatSpec{
			Expression: m["cron_expr"],
			Timezone:   m["cron_tz"],
		},
		Opts: job.EnqueueOptions{
			Attempts: parseInt(m["attempts"]),
			Backoff: job.BackoffSpec{
				Strategy: job.BackoffStrategy(m["backoff_strategy"]),
				BaseMs:   parseInt64(m["backoff_base_ms"]),
				MaxMs:    parseInt64(m["backoff_max_ms"]),
			},
			PriorityClass:      parseInt(m["priority_class"]),
			TimeoutMs:          parseInt64(m["timeout_ms"]),
			RetainOnCompletion: m["retain_completion"] == "1",
			RetainOnFailure:    m["retain_failure"] == "1",
			DedupKey:           m["dedup_key"],
		},
		LastFire:  msToTime(parseInt64(m["last_fire_ms"])),
		LiveJobID: parseInt64(m["live_job_id"]),
	}
}

// Get implements engine.Repeater.
func (c *Client) Get(ctx context.Context, queue, repeatID string) (*job.RepeatTemplate, error) {
	v, err := c.guard(func() (interface{}, error) {
		return c.rdb.HGetAll(ctx, repeatKey(queue, repeatID)).Result()
	})
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]string)
	if len(m) == 0 {
		return nil, engine.ErrJobNotFound
	}
	return decodeRepeatTemplate(queue, repeatID, m), nil
}

// ListOrphaned implements engine.Repeater.
//
// A template is orphaned if it has a live job id but that job no longer
// exists, or has already reached a terminal state — both signs that the
// worker performing expansion crashed between the job terminating and
// CompleteLive being called.
func (c *Client) ListOrphaned(ctx context.Context, queue string) ([]*job.RepeatTemplate, error) {
	v, err := c.guard(func() (interface{}, error) {
		return c.rdb.SMembers(ctx, repeatIndexKey(queue)).Result()
	})
	if err != nil {
		return nil, err
	}
	ids, _ := v.([]string)
	var ret []*job.RepeatTemplate
	for _, id := range ids {
		tmpl, err := c.Get(ctx, queue, id)
		if err != nil {
			continue
		}
		if tmpl.LiveJobID == 0 {
			continue
		}
		jb, err := c.GetJob(ctx, queue, tmpl.LiveJobID)
		if err != nil || jb.Status == job.Completed || jb.Status == job.Failed {
			ret = append(ret, tmpl)
		}
	}
	return ret, nil
}
