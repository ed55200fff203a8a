package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kvqueue/jobqueue/events"
	"github.com/kvqueue/jobqueue/internal"
)

// PromotionLoop periodically moves a queue's due Delayed jobs into
// Waiting by calling Puller.PromoteDue. One PromotionLoop runs per
// registered queue, each on its own QueueConfig.PromoteInterval.
type PromotionLoop struct {
	lcBase
	queue  string
	cfg    QueueConfig
	puller Puller
	bus    *events.Bus
	task   internal.TimerTask
	log    *slog.Logger
}

// NewPromotionLoop creates a PromotionLoop for queue. It is not started
// automatically; call Start.
func NewPromotionLoop(queue string, cfg QueueConfig, puller Puller, bus *events.Bus, log *slog.Logger) *PromotionLoop {
	return &PromotionLoop{
		queue:  queue,
		cfg:    cfg,
		puller: puller,
		bus:    bus,
		log:    log.With("queue", queue),
	}
}

func (p *PromotionLoop) tick(ctx context.Context) {
	now := time.Now()
	ids, err := p.puller.PromoteDue(ctx, p.queue, now)
	if err != nil {
		p.log.Error("promote due failed", "err", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	p.log.Debug("promoted delayed jobs", "count", len(ids))
	for _, id := range ids {
		p.bus.Publish(events.Event{Queue: p.queue, JobID: id, Kind: events.Waiting, At: now})
	}
}

// Start begins the periodic promotion loop. It returns ErrDoubleStarted
// if already started.
func (p *PromotionLoop) Start(ctx context.Context) error {
	if err := p.tryStart(); err != nil {
		return err
	}
	p.task.Start(ctx, p.tick, p.cfg.promoteInterval())
	return nil
}

// Stop halts the promotion loop, waiting up to timeout for the current
// tick to finish.
func (p *PromotionLoop) Stop(timeout time.Duration) error {
	return p.tryStop(timeout, func() internal.DoneChan {
		return p.task.Stop()
	})
}
