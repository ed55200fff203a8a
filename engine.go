package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvqueue/jobqueue/events"
	"github.com/kvqueue/jobqueue/internal"
	"github.com/kvqueue/jobqueue/job"
)

// Store is the full storage-port surface a KV backend must implement to
// back an Engine. The redis subpackage provides the canonical
// implementation.
type Store interface {
	Pusher
	Puller
	Observer
	Cleaner
	Repeater

	// HealthCheck reports whether the underlying KV store is reachable.
	HealthCheck(ctx context.Context) error

	// ConfigureQueue persists queue's rate-limit configuration so Pop's
	// admission check can enforce it without it being passed in on every
	// call. Engine.Start calls this once per registered queue.
	ConfigureQueue(ctx context.Context, queue string, limit *RateLimit) error
}

// Config configures an Engine.
//
// Registry must be populated with every queue's configuration and
// handlers before Start is called; queues added afterward are not
// picked up until the next Start.
//
// ShutdownGrace bounds how long Shutdown waits for in-flight handlers
// and background loops to finish before giving up. Zero defaults to 30
// seconds.
type Config struct {
	Store         Store
	Registry      *Registry
	Log           *slog.Logger
	ShutdownGrace time.Duration
}

type queueRuntime struct {
	worker *Worker
	promo  *PromotionLoop
	stall  *StallDetector
	clean  *CleanWorker
}

// Engine is the top-level facade (the Lifecycle Manager, component C10):
// it owns the Registry, the Store, the event bus, and one Worker,
// PromotionLoop, StallDetector and CleanWorker per registered queue, plus
// a single shared RepeatManager.
//
// Engine has a strict lifecycle: Start may only be called once, and
// Shutdown gracefully drains every queue's in-flight work.
type Engine struct {
	lcBase
	store    Store
	registry *Registry
	bus      *events.Bus
	log      *slog.Logger
	grace    time.Duration

	mu       sync.Mutex
	runtimes map[string]*queueRuntime
	repeats  *RepeatManager

	shuttingDown atomic.Bool
}

// New constructs an Engine from cfg. The engine is not started
// automatically; call Start.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Engine{
		store:    cfg.Store,
		registry: cfg.Registry,
		bus:      events.NewBus(),
		log:      log,
		grace:    grace,
		runtimes: make(map[string]*queueRuntime),
	}
}

// Start launches the Worker, PromotionLoop, StallDetector and
// CleanWorker for every queue registered in the Engine's Registry, plus
// the shared RepeatManager. It returns ErrDoubleStarted if already
// started.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.tryStart(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cfg := range e.registry.Queues() {
		if err := e.store.ConfigureQueue(ctx, cfg.Name, cfg.RateLimit); err != nil {
			return err
		}
		rt := &queueRuntime{
			worker: NewWorker(cfg.Name, cfg, e.store, e.registry, e.bus, e.log),
			promo:  NewPromotionLoop(cfg.Name, cfg, e.store, e.bus, e.log),
			stall:  NewStallDetector(cfg.Name, cfg, e.store, e.bus, e.log),
		}
		if err := rt.worker.Start(ctx); err != nil {
			return err
		}
		if err := rt.promo.Start(ctx); err != nil {
			return err
		}
		if err := rt.stall.Start(ctx); err != nil {
			return err
		}
		rt.clean = NewCleanWorker(e.store, &CleanConfig{
			Queue:     cfg.Name,
			Interval:  5 * time.Minute,
			OlderThan: 24 * time.Hour,
		}, e.log)
		if err := rt.clean.Start(ctx); err != nil {
			return err
		}
		e.runtimes[cfg.Name] = rt
	}
	e.repeats = NewRepeatManager(e.registry, e.store, e.store, e.store, e.bus, e.log)
	return e.repeats.Start(ctx)
}

func (e *Engine) doStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.repeats != nil {
		if err := e.repeats.Stop(e.grace); err != nil {
			e.log.Error("repeat manager stop", "err", err)
		}
	}
	var wg sync.WaitGroup
	for name, rt := range e.runtimes {
		rt := rt
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rt.worker.Stop(e.grace); err != nil {
				e.log.Error("worker stop", "queue", name, "err", err)
			}
			if err := rt.promo.Stop(e.grace); err != nil {
				e.log.Error("promotion loop stop", "queue", name, "err", err)
			}
			if err := rt.stall.Stop(e.grace); err != nil {
				e.log.Error("stall detector stop", "queue", name, "err", err)
			}
			if err := rt.clean.Stop(e.grace); err != nil {
				e.log.Error("clean worker stop", "queue", name, "err", err)
			}
		}()
	}
	wg.Wait()
}

// Shutdown gracefully stops every background loop and waits for
// in-flight handlers to finish, bounded by the Engine's ShutdownGrace.
// It returns ErrDoubleStopped if the engine is not running. Once called,
// Enqueue/EnqueueScheduled/EnqueueRepeatable immediately fail with
// ErrShuttingDown, even while the grace period is still draining
// in-flight handlers.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shuttingDown.Store(true)
	return e.tryStop(e.grace, func() internal.DoneChan {
		done := make(internal.DoneChan)
		go func() {
			e.doStop()
			close(done)
		}()
		return done
	})
}

// HealthCheck reports whether the Engine's Store is reachable.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.store.HealthCheck(ctx)
}

// Subscribe registers a listener on the Engine's lifecycle event bus.
// See events.Bus.Subscribe.
func (e *Engine) Subscribe(buffer int, kinds ...events.Kind) *events.Subscription {
	return e.bus.Subscribe(buffer, kinds...)
}

// Bus returns the Engine's underlying event bus, so a host can wire an
// external relay (e.g. the redis subpackage's cross-process pub/sub
// Bridge) to it without the engine package needing to depend on any
// particular transport. The host owns that relay's lifecycle.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// applyDefaults fills any zero field of opts from cfg.Defaults (a zero
// PriorityClass becomes 2), and returns ErrQueueUnknown if queue was
// never registered.
func (e *Engine) applyDefaults(queue string, opts job.EnqueueOptions) (job.EnqueueOptions, error) {
	cfg, ok := e.registry.Queue(queue)
	if !ok {
		return opts, ErrQueueUnknown
	}
	if opts.Attempts == 0 {
		opts.Attempts = cfg.Defaults.Attempts
	}
	if opts.Backoff.Strategy == "" {
		opts.Backoff = cfg.Defaults.Backoff
	}
	if opts.TimeoutMs == 0 {
		opts.TimeoutMs = cfg.Defaults.TimeoutMs
	}
	if opts.PriorityClass == 0 {
		opts.PriorityClass = 2
	}
	if !opts.RetainOnCompletion {
		opts.RetainOnCompletion = cfg.Defaults.RetainOnCompletion
	}
	if !opts.RetainOnFailure {
		opts.RetainOnFailure = cfg.Defaults.RetainOnFailure
	}
	return opts, nil
}

// Enqueue pushes a new job of kind onto queue with payload, per opts.
// Zero fields of opts take the queue's registered defaults.
func (e *Engine) Enqueue(ctx context.Context, queue, kind string, payload []byte, opts job.EnqueueOptions) (int64, error) {
	if e.shuttingDown.Load() {
		return 0, ErrShuttingDown
	}
	opts, err := e.applyDefaults(queue, opts)
	if err != nil {
		return 0, err
	}
	id, err := e.store.Push(ctx, queue, kind, payload, opts)
	if err != nil {
		return id, err
	}
	e.publishEnqueued(queue, id, opts)
	return id, nil
}

// publishEnqueued emits a Waiting event for a newly-durable job, unless it
// was enqueued with a delay (in which case the PromotionLoop emits Waiting
// once it actually becomes eligible).
func (e *Engine) publishEnqueued(queue string, id int64, opts job.EnqueueOptions) {
	if opts.DelayMs > 0 {
		return
	}
	e.bus.Publish(events.Event{Queue: queue, JobID: id, Kind: events.Waiting, At: time.Now()})
}

// EnqueueScheduled pushes a new job that becomes eligible at exactly at.
// It returns ErrPastSchedule if at has already passed.
func (e *Engine) EnqueueScheduled(ctx context.Context, queue, kind string, payload []byte, at time.Time, opts job.EnqueueOptions) (int64, error) {
	if e.shuttingDown.Load() {
		return 0, ErrShuttingDown
	}
	delay := time.Until(at)
	if delay <= 0 {
		return 0, ErrPastSchedule
	}
	opts.DelayMs = delay.Milliseconds()
	opts, err := e.applyDefaults(queue, opts)
	if err != nil {
		return 0, err
	}
	id, err := e.store.Push(ctx, queue, kind, payload, opts)
	if err != nil {
		return id, err
	}
	e.publishEnqueued(queue, id, opts)
	return id, nil
}

// EnqueueRepeatable registers a cron-driven template and enqueues its
// first concrete instance.
func (e *Engine) EnqueueRepeatable(ctx context.Context, queue, kind string, payload []byte, spec job.RepeatSpec, opts job.EnqueueOptions) (string, error) {
	if e.shuttingDown.Load() {
		return "", ErrShuttingDown
	}
	opts, err := e.applyDefaults(queue, opts)
	if err != nil {
		return "", err
	}
	return e.store.PushRepeatable(ctx, queue, kind, payload, spec, opts)
}

// GetJob returns the job identified by id within queue.
func (e *Engine) GetJob(ctx context.Context, queue string, id int64) (*job.Job, error) {
	return e.store.GetJob(ctx, queue, id)
}

// Inspect paginates over queue's jobs in the given status.
func (e *Engine) Inspect(ctx context.Context, queue string, status job.Status, from, to int64) ([]*job.Job, error) {
	return e.store.Inspect(ctx, queue, status, from, to)
}

// Stats returns queue's cardinality snapshot.
func (e *Engine) Stats(ctx context.Context, queue string) (Stats, error) {
	return e.store.Stats(ctx, queue)
}

// RemoveJob deletes a job outright. It returns ErrBusy if the job is
// Active with a live lease.
func (e *Engine) RemoveJob(ctx context.Context, queue string, id int64) error {
	return e.store.RemoveJob(ctx, queue, id, time.Now())
}

// Retry resets a Failed job to Waiting.
func (e *Engine) Retry(ctx context.Context, queue string, id int64) error {
	return e.store.Retry(ctx, queue, id)
}

// Pause withholds Waiting->Active promotion for queue.
func (e *Engine) Pause(ctx context.Context, queue string) error {
	if err := e.store.Pause(ctx, queue); err != nil {
		return err
	}
	e.bus.Publish(events.Event{Queue: queue, Kind: events.Paused, At: time.Now()})
	return nil
}

// Resume clears queue's paused flag.
func (e *Engine) Resume(ctx context.Context, queue string) error {
	if err := e.store.Resume(ctx, queue); err != nil {
		return err
	}
	e.bus.Publish(events.Event{Queue: queue, Kind: events.Resumed, At: time.Now()})
	return nil
}

// Clean removes up to CleanBatchSize terminal jobs of queue per terminal
// set matching status, older than olderThan.
func (e *Engine) Clean(ctx context.Context, queue string, status job.Status, olderThan time.Duration) (int64, error) {
	return e.store.Clean(ctx, queue, status, olderThan)
}
