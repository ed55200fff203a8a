package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kvqueue/jobqueue/events"
	"github.com/kvqueue/jobqueue/internal"
	"github.com/kvqueue/jobqueue/job"
)

// StallDetector periodically scans a queue's Active set for jobs whose
// lease has expired, requeuing or failing each one via
// Puller.ReclaimStalled (component C7). One StallDetector runs per
// registered queue.
type StallDetector struct {
	lcBase
	queue  string
	cfg    QueueConfig
	puller Puller
	bus    *events.Bus
	task   internal.TimerTask
	log    *slog.Logger
}

// NewStallDetector creates a StallDetector for queue. It is not started
// automatically; call Start.
func NewStallDetector(queue string, cfg QueueConfig, puller Puller, bus *events.Bus, log *slog.Logger) *StallDetector {
	return &StallDetector{
		queue:  queue,
		cfg:    cfg,
		puller: puller,
		bus:    bus,
		log:    log.With("queue", queue),
	}
}

func (d *StallDetector) tick(ctx context.Context) {
	now := time.Now()
	reclaimed, err := d.puller.ReclaimStalled(ctx, d.queue, d.cfg.maxStalls(), now)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.log.Error("reclaim stalled failed", "err", err)
		return
	}
	for _, jb := range reclaimed {
		kind := events.Stalled
		if jb.Status == job.Failed {
			kind = events.Failed
		}
		d.bus.Publish(events.Event{
			Queue: d.queue,
			JobID: jb.ID,
			Kind:  kind,
			At:    now,
			Data:  map[string]any{"stall_count": jb.StallCount},
		})
		d.log.Warn("job stalled", "id", jb.ID, "stall_count", jb.StallCount, "status", jb.Status)
	}
}

// Start begins the periodic stall scan. It returns ErrDoubleStarted if
// already started.
func (d *StallDetector) Start(ctx context.Context) error {
	if err := d.tryStart(); err != nil {
		return err
	}
	d.task.Start(ctx, d.tick, d.cfg.stallCheckInterval())
	return nil
}

// Stop halts the stall scan, waiting up to timeout for the current tick
// to finish.
func (d *StallDetector) Stop(timeout time.Duration) error {
	return d.tryStop(timeout, func() internal.DoneChan {
		return d.task.Stop()
	})
}
