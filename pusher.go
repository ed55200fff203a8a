package engine

import (
	"context"

	"github.com/kvqueue/jobqueue/job"
)

// Pusher defines the write-side entry point of a queue backend.
//
// Pusher implementations allocate the job's id atomically and persist the
// record durably before returning; per the engine's at-least-once
// invariant, a nil error means the job's id is already on the queue's
// waiting-or-delayed set and will eventually be observed.
type Pusher interface {
	// Push enqueues a new job of the given kind with the given payload.
	//
	// If opts.DelayMs > 0 the job starts Delayed and becomes Waiting once
	// AvailableAt elapses; otherwise it starts Waiting immediately.
	//
	// If opts.DedupKey is non-empty and another job of the same queue
	// already holds that DedupKey, Push returns ErrDuplicate and the new
	// job is not created. A job holds its DedupKey from Push until it is
	// deleted by RemoveJob or Clean, so a Completed or Failed job that has
	// not been removed still blocks the key. Concurrent Push calls racing
	// on the same DedupKey must resolve so that exactly one succeeds.
	//
	// Push does not consult the queue registry; Engine.Enqueue returns
	// ErrQueueUnknown for an unregistered queue before calling Push.
	Push(ctx context.Context, queue, kind string, payload []byte, opts job.EnqueueOptions) (int64, error)

	// PushRepeatable registers a cron-driven template under the given
	// queue and returns a repeat id. The first concrete delayed job is
	// enqueued immediately for the template's next fire time; subsequent
	// fires are produced by the engine's repeatable expansion (see
	// Repeater) as each concrete instance terminates.
	PushRepeatable(ctx context.Context, queue, kind string, payload []byte, spec job.RepeatSpec, opts job.EnqueueOptions) (string, error)
}
