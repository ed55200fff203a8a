package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kvqueue/jobqueue/cronspec"
	"github.com/kvqueue/jobqueue/events"
	"github.com/kvqueue/jobqueue/internal"
)

// RepeatManager drives the one-instance-at-a-time expansion of
// repeatable (cron) job templates (component C5, continued).
//
// It subscribes to the event bus for Completed and Failed events, and
// for any job carrying a RepeatID, advances the owning template to its
// next cron fire. On Start, and every minute after, it also runs
// ListOrphaned for each queue to recover templates whose previous
// expansion was interrupted by a crash between a live job terminating
// and the next instance being enqueued.
type RepeatManager struct {
	lcBase
	registry *Registry
	observer Observer
	repeater Repeater
	pusher   Pusher
	bus      *events.Bus
	sub      *events.Subscription
	recovery internal.TimerTask
	log      *slog.Logger
}

// NewRepeatManager creates a RepeatManager. It is not started
// automatically; call Start.
func NewRepeatManager(registry *Registry, observer Observer, repeater Repeater, pusher Pusher, bus *events.Bus, log *slog.Logger) *RepeatManager {
	return &RepeatManager{
		registry: registry,
		observer: observer,
		repeater: repeater,
		pusher:   pusher,
		bus:      bus,
		log:      log,
	}
}

func (m *RepeatManager) advance(ctx context.Context, queue string, repeatID string, jobID int64) {
	lastFire, ok, err := m.repeater.CompleteLive(ctx, queue, repeatID, jobID)
	if err != nil {
		m.log.Error("repeatable: complete live failed", "queue", queue, "repeat_id", repeatID, "err", err)
		return
	}
	if !ok {
		return
	}
	m.expand(ctx, queue, repeatID, lastFire)
}

func (m *RepeatManager) expand(ctx context.Context, queue string, repeatID string, after time.Time) {
	tmpl, err := m.repeater.Get(ctx, queue, repeatID)
	if err != nil {
		m.log.Error("repeatable: get template failed", "queue", queue, "repeat_id", repeatID, "err", err)
		return
	}
	spec, err := cronspec.Parse(tmpl.Spec.Expression, tmpl.Spec.Timezone)
	if err != nil {
		m.log.Error("repeatable: bad cron spec", "queue", queue, "repeat_id", repeatID, "err", err)
		return
	}
	next := spec.Next(after)
	now := time.Now()
	delay := next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	opts := tmpl.Opts
	opts.DelayMs = delay.Milliseconds()
	opts.RepeatID = repeatID
	id, err := m.pusher.Push(ctx, queue, tmpl.Kind, tmpl.Payload, opts)
	if err != nil {
		m.log.Error("repeatable: push next instance failed", "queue", queue, "repeat_id", repeatID, "err", err)
		return
	}
	if err := m.repeater.SetLive(ctx, queue, repeatID, id, next); err != nil {
		m.log.Error("repeatable: set live failed", "queue", queue, "repeat_id", repeatID, "err", err)
		return
	}
	m.log.Debug("repeatable: expanded", "queue", queue, "repeat_id", repeatID, "job_id", id, "next", next)
}

func (m *RepeatManager) onEvent(ev events.Event) {
	if ev.Kind != events.Completed && ev.Kind != events.Failed {
		return
	}
	jb, err := m.observer.GetJob(context.Background(), ev.Queue, ev.JobID)
	if err != nil {
		return
	}
	if jb.RepeatID == "" {
		return
	}
	m.advance(context.Background(), ev.Queue, jb.RepeatID, jb.ID)
}

func (m *RepeatManager) recoverOrphaned(ctx context.Context) {
	for _, cfg := range m.registry.Queues() {
		tmpls, err := m.repeater.ListOrphaned(ctx, cfg.Name)
		if err != nil {
			m.log.Error("repeatable: list orphaned failed", "queue", cfg.Name, "err", err)
			continue
		}
		for _, tmpl := range tmpls {
			if tmpl.LiveJobID != 0 {
				if _, ok, err := m.repeater.CompleteLive(ctx, cfg.Name, tmpl.ID, tmpl.LiveJobID); err != nil || !ok {
					continue
				}
			}
			m.log.Warn("repeatable: recovering orphaned template", "queue", cfg.Name, "repeat_id", tmpl.ID)
			m.expand(ctx, cfg.Name, tmpl.ID, tmpl.LastFire)
		}
	}
}

// Start subscribes to the event bus and begins periodic orphan recovery
// scans. It returns ErrDoubleStarted if already started.
func (m *RepeatManager) Start(ctx context.Context) error {
	if err := m.tryStart(); err != nil {
		return err
	}
	m.sub = m.bus.Subscribe(64, events.Completed, events.Failed)
	go func() {
		for ev := range m.sub.C() {
			m.onEvent(ev)
		}
	}()
	m.recovery.Start(ctx, m.recoverOrphaned, time.Minute)
	return nil
}

// Stop unsubscribes from the event bus and halts recovery scans.
func (m *RepeatManager) Stop(timeout time.Duration) error {
	return m.tryStop(timeout, func() internal.DoneChan {
		done := m.recovery.Stop()
		if m.sub != nil {
			m.sub.Unsubscribe()
		}
		return done
	})
}
