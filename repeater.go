package engine

import (
	"context"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

// Repeater registers and expands repeatable (cron) job templates. A
// template is expanded into concrete delayed jobs exactly one at a time:
// when the current concrete instance terminates, the engine computes the
// template's next cron fire and enqueues a new delayed concrete job.
type Repeater interface {
	// Register persists a new repeat template under queue and returns
	// its id. It does not itself enqueue a concrete job; the caller
	// (the backend's PushRepeatable) pushes the first instance and calls
	// SetLive.
	Register(ctx context.Context, queue string, tmpl job.RepeatTemplate) (string, error)

	// SetLive atomically records jobID as the live concrete instance of
	// repeatID, provided the template has no live instance (its previous
	// one was cleared by CompleteLive). firedAt is the cron fire time the
	// new instance represents.
	SetLive(ctx context.Context, queue, repeatID string, jobID int64, firedAt time.Time) error

	// CompleteLive clears repeatID's live-instance pointer, provided it
	// still points at jobID, and returns the fire time that instance
	// represented so the caller can compute the next fire strictly
	// after it. ok is false if jobID no longer matches (another process
	// already performed recovery for this template).
	CompleteLive(ctx context.Context, queue, repeatID string, jobID int64) (lastFire time.Time, ok bool, err error)

	// Get returns the stored template for repeatID.
	Get(ctx context.Context, queue, repeatID string) (*job.RepeatTemplate, error)

	// ListOrphaned returns the templates in queue whose recorded live job no
	// longer exists or has already reached a terminal state without
	// triggering expansion — for example because the worker performing
	// the expansion crashed between completing the job and calling
	// CompleteLive. A recovering worker resolves these by calling
	// CompleteLive for the orphaned job id and proceeding as usual.
	ListOrphaned(ctx context.Context, queue string) ([]*job.RepeatTemplate, error)
}
