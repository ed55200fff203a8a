package engine

import (
	"context"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

// PopStatus reports the outcome of a pop-and-lease attempt that did not
// yield a job.
type PopStatus int

const (
	// PopOK indicates a job was returned.
	PopOK PopStatus = iota

	// PopEmpty indicates the queue has no eligible waiting job, or the
	// queue is paused.
	PopEmpty

	// PopThrottled indicates the rate limiter had no token available.
	// RetryAfter on the Pop result names the earliest time a token may
	// exist.
	PopThrottled
)

// Puller defines the read-write contract for consuming and managing jobs
// through their lifecycle, once enqueued.
//
// Puller implementations provide visibility-timeout semantics: Pop
// transitions a job from Waiting to Active for the duration of a lease;
// if the owning worker does not finish or renew the lease before it
// expires, ReclaimStalled makes the job eligible again.
type Puller interface {
	// PromoteDue moves every Delayed job of queue whose AvailableAt has
	// elapsed into Waiting, preserving priority/creation ordering. It
	// returns the ids of the jobs promoted. The move must be atomic per
	// job so that concurrent callers across processes never promote the
	// same job twice.
	PromoteDue(ctx context.Context, queue string, now time.Time) ([]int64, error)

	// Pop attempts to pop the highest-priority, oldest eligible Waiting
	// job of queue and lease it for lease. If the queue is paused, Pop
	// returns (nil, PopEmpty, 0, nil). If a rate limit is configured and
	// exhausted, Pop returns (nil, PopThrottled, retryAfter, nil)
	// without consuming a waiting job. Admission check and pop must be
	// atomic together: a token is never consumed without a job being
	// returned, and vice versa.
	Pop(ctx context.Context, queue string, lease time.Duration, now time.Time) (*job.Job, PopStatus, time.Duration, error)

	// ExtendLease renews the lease of an Active job owned by the caller.
	// It returns ErrLockLost if the job is no longer Active or its
	// lease was already reclaimed.
	ExtendLease(ctx context.Context, queue string, id int64, lease time.Duration, now time.Time) error

	// Complete transitions an Active job to Completed, recording result.
	// It returns ErrLockLost if the job is no longer Active.
	Complete(ctx context.Context, queue string, id int64, result []byte, now time.Time) error

	// Fail records a handler failure for an Active job. If attempts
	// remain and permanent is false, the job is rescheduled Delayed
	// after the given backoff; otherwise it transitions to Failed with
	// lastErr recorded. Fail returns ErrLockLost if the job is no longer
	// Active.
	Fail(ctx context.Context, queue string, id int64, lastErr string, permanent bool, backoff time.Duration, now time.Time) error

	// ReclaimStalled scans queue's Active set for leases that expired
	// before now. For each, it increments StallCount; if the result
	// exceeds maxStalls the job is failed with ErrStalled, otherwise it
	// is returned to Waiting preserving AttemptsMade. It returns the
	// reclaimed jobs (both outcomes) for event emission. Multiple
	// detectors racing on the same job must resolve so only one
	// succeeds per job.
	ReclaimStalled(ctx context.Context, queue string, maxStalls int, now time.Time) ([]*job.Job, error)

	// Retry resets a Failed job's AttemptsMade to zero and moves it to
	// Waiting. It returns ErrBadStatus if the job is not Failed.
	Retry(ctx context.Context, queue string, id int64) error

	// RemoveJob deletes a job outright. It returns ErrBusy if the job is
	// Active and its lease has not yet expired.
	RemoveJob(ctx context.Context, queue string, id int64, now time.Time) error

	// Pause sets queue's paused flag; in-flight Active jobs are
	// unaffected but Pop returns PopEmpty until Resume.
	Pause(ctx context.Context, queue string) error

	// Resume clears queue's paused flag.
	Resume(ctx context.Context, queue string) error

	// IsPaused reports queue's current paused flag.
	IsPaused(ctx context.Context, queue string) (bool, error)
}
