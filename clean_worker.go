package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kvqueue/jobqueue/internal"
	"github.com/kvqueue/jobqueue/job"
)

// CleanConfig defines the scheduling and filtering parameters for a
// CleanWorker attached to one queue.
//
// Status specifies which job state should be targeted for deletion. The
// zero value (job.Unknown) targets both Completed and Failed jobs.
//
// Interval defines how often the cleaner runs. OlderThan restricts
// deletion to jobs whose FinishedAt is at least OlderThan in the past; a
// zero OlderThan applies no age filter.
type CleanConfig struct {
	Queue     string
	Status    job.Status
	Interval  time.Duration
	OlderThan time.Duration
}

// CleanWorker periodically invokes a Cleaner implementation according to
// the provided configuration.
//
// CleanWorker is intended for background retention management, such as
// removing completed or failed jobs after a configurable period of time.
// It does not participate in job processing and does not affect leases.
//
// CleanWorker has a strict lifecycle:
//   - Start may only be called once.
//   - Stop must be called to terminate the worker.
//   - Stop waits for the internal task to finish or until the timeout
//     expires.
type CleanWorker struct {
	lcBase
	cleaner Cleaner
	task    internal.TimerTask
	log     *slog.Logger

	queue     string
	status    job.Status
	interval  time.Duration
	olderThan time.Duration
}

// NewCleanWorker creates a new CleanWorker using the provided Cleaner
// implementation and configuration.
//
// The worker is not started automatically. Call Start to begin periodic
// cleaning.
func NewCleanWorker(cleaner Cleaner, config *CleanConfig, log *slog.Logger) *CleanWorker {
	return &CleanWorker{
		cleaner:   cleaner,
		log:       log,
		queue:     config.Queue,
		status:    config.Status,
		interval:  config.Interval,
		olderThan: config.OlderThan,
	}
}

func (cw *CleanWorker) clean(ctx context.Context) {
	count, err := cw.cleaner.Clean(ctx, cw.queue, cw.status, cw.olderThan)
	if err != nil {
		cw.log.Error("error while cleaning", "queue", cw.queue, "err", err)
		return
	}
	cw.log.Info("cleaned jobs", "queue", cw.queue, "count", count)
}

// Start begins periodic execution of the cleaning task.
//
// Start returns ErrDoubleStarted if the worker has already been started.
func (cw *CleanWorker) Start(ctx context.Context) error {
	if err := cw.tryStart(); err != nil {
		return err
	}
	cw.task.Start(ctx, cw.clean, cw.interval)
	return nil
}

// Stop terminates the background cleaning task.
//
// Stop waits until the task finishes or the specified timeout expires.
// If shutdown does not complete within the timeout, ErrStopTimeout is
// returned. Stop returns ErrDoubleStopped if the worker is not running.
func (cw *CleanWorker) Stop(timeout time.Duration) error {
	return cw.tryStop(timeout, cw.task.Stop)
}
