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

type errChan chan error

// Worker pulls, dispatches, retries and completes jobs for a single queue.
//
// Worker implements the at-least-once processing model:
//
//  1. Periodically Pop a job from storage, which atomically promotes it
//     to Active under a lease.
//  2. Dispatch it to the handler registered for its Kind.
//  3. Extend the lease while the handler runs.
//  4. On success, mark the job Completed.
//  5. On failure, reschedule it per its BackoffSpec or fail it outright,
//     according to ErrPermanent and remaining attempts.
//
// Worker does not guarantee exactly-once delivery; handlers must be
// idempotent.
//
// Worker has a strict lifecycle: Start may only be called once per
// instance, and Stop gracefully drains in-flight handlers or times out.
type Worker struct {
	lcBase
	queue    string
	cfg      QueueConfig
	puller   Puller
	registry *Registry
	bus      *events.Bus
	pool     *internal.WorkerPool[*job.Job]
	pullTask internal.TimerTask
	log      *slog.Logger
}

// NewWorker creates a Worker for queue, using cfg.Concurrency concurrent
// handlers. The worker is not started automatically; call Start.
func NewWorker(queue string, cfg QueueConfig, puller Puller, registry *Registry, bus *events.Bus, log *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		cfg:      cfg,
		puller:   puller,
		registry: registry,
		bus:      bus,
		pool:     internal.NewWorkerPool[*job.Job](cfg.Concurrency, cfg.Concurrency, log),
		log:      log.With("queue", queue),
	}
}

func (w *Worker) popLease() time.Duration {
	base := time.Duration(w.cfg.Defaults.TimeoutMs) * time.Millisecond
	if base <= 0 {
		base = 30 * time.Second
	}
	return base + w.cfg.leaseBuffer()
}

func (w *Worker) leaseFor(j *job.Job) time.Duration {
	ms := j.TimeoutMs
	if ms <= 0 {
		ms = w.cfg.Defaults.TimeoutMs
	}
	d := time.Duration(ms) * time.Millisecond
	if d <= 0 {
		d = 30 * time.Second
	}
	return d + w.cfg.leaseBuffer()
}

func (w *Worker) pull(ctx context.Context) {
	now := time.Now()
	jb, status, retryAfter, err := w.puller.Pop(ctx, w.queue, w.popLease(), now)
	switch status {
	case PopEmpty:
		return
	case PopThrottled:
		w.log.Debug("pop throttled", "retry_after", retryAfter)
		return
	}
	if err != nil {
		w.log.Error("pop failed", "err", err)
		return
	}
	if jb == nil {
		return
	}
	lease := w.leaseFor(jb)
	if lease != w.popLease() {
		if err := w.puller.ExtendLease(ctx, w.queue, jb.ID, lease, now); err != nil {
			w.log.Warn("lease adjust failed", "id", jb.ID, "err", err)
		}
	}
	w.bus.Publish(events.Event{Queue: w.queue, JobID: jb.ID, Kind: events.Active, At: now})
	if !w.pool.Push(jb) {
		w.log.Debug("job push interrupted via shutdown", "id", jb.ID)
	}
}

func doHandle(handler HandlerFunc, ctx context.Context, jb *job.Job) errChan {
	type result struct {
		out []byte
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		out, err := handler(ctx, jb)
		resCh <- result{out, err}
	}()
	ret := make(errChan, 1)
	go func() {
		r := <-resCh
		jb.Result = r.out
		ret <- r.err
	}()
	return ret
}

func (w *Worker) handleOrExtend(ctx context.Context, handler HandlerFunc, jb *job.Job, lease time.Duration) error {
	wrapped, cancel := context.WithCancel(ctx)
	defer cancel()
	if jb.TimeoutMs > 0 {
		var tcancel context.CancelFunc
		wrapped, tcancel = context.WithTimeout(wrapped, time.Duration(jb.TimeoutMs)*time.Millisecond)
		defer tcancel()
	}
	errCh := doHandle(handler, wrapped, jb)
	half := lease / 2
	if half <= 0 {
		half = time.Second
	}
	timer := time.NewTimer(half)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			now := time.Now()
			if err := w.puller.ExtendLease(ctx, w.queue, jb.ID, lease, now); err != nil {
				cancel()
				return err
			}
			timer.Reset(half)
		case err := <-errCh:
			return err
		}
	}
}

func (w *Worker) handle(ctx context.Context, jb *job.Job) {
	handler, ok := w.registry.Handler(jb.Kind)
	if !ok {
		now := time.Now()
		if err := w.puller.Fail(ctx, w.queue, jb.ID, ErrHandlerMissing.Error(), true, 0, now); err != nil {
			w.log.Error("cannot fail job with missing handler", "id", jb.ID, "err", err)
		}
		w.bus.Publish(events.Event{Queue: w.queue, JobID: jb.ID, Kind: events.Failed, At: now})
		return
	}
	lease := w.leaseFor(jb)
	err := w.handleOrExtend(ctx, handler, jb, lease)
	now := time.Now()
	if err == nil {
		if err := w.puller.Complete(ctx, w.queue, jb.ID, jb.Result, now); err != nil {
			w.log.Error("cannot complete job", "id", jb.ID, "err", err)
			return
		}
		w.bus.Publish(events.Event{Queue: w.queue, JobID: jb.ID, Kind: events.Completed, At: now})
		return
	}
	if errors.Is(err, ErrLockLost) {
		w.log.Warn("job lease lost", "id", jb.ID, "err", err)
		return
	}
	permanent := errors.Is(err, ErrPermanent)
	// jb.AttemptsMade already counts the attempt that just failed (popScript
	// increments it when promoting the job to active), so the backoff
	// exponent is based on the count before this failure.
	backoff := ComputeBackoff(jb.Backoff, jb.AttemptsMade-1)
	if err := w.puller.Fail(ctx, w.queue, jb.ID, err.Error(), permanent, backoff, now); err != nil {
		w.log.Error("cannot fail job", "id", jb.ID, "err", err)
		return
	}
	w.bus.Publish(events.Event{Queue: w.queue, JobID: jb.ID, Kind: events.Failed, At: now, Data: map[string]any{"error": err.Error()}})
}

// Start begins background popping and processing of jobs for this queue.
//
// Start returns ErrDoubleStarted if the worker has already been started.
// When ctx is canceled, popping stops and in-flight handlers receive a
// canceled context.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.tryStart(); err != nil {
		return err
	}
	w.pool.Start(ctx, w.handle)
	w.pullTask.Start(ctx, w.pull, w.cfg.promoteInterval())
	return nil
}

func (w *Worker) doStop() internal.DoneChan {
	first := w.pullTask.Stop()
	second := w.pool.Stop()
	return internal.Combine(first, second)
}

// Stop initiates graceful shutdown: stops popping new jobs, cancels the
// worker pool, and waits for in-flight handlers to finish. It returns
// ErrStopTimeout if shutdown does not complete within timeout, and
// ErrDoubleStopped if the worker is not running.
func (w *Worker) Stop(timeout time.Duration) error {
	return w.tryStop(timeout, w.doStop)
}
