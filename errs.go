package engine

import "errors"

// Error kinds surfaced to producers, admins, and the Worker Pool. Kinds
// that only ever cross an internal boundary (THROTTLED) are still plain
// sentinel errors so that internal callers can use errors.Is like anyone
// else.
var (
	// ErrQueueUnknown indicates the named queue was never registered.
	ErrQueueUnknown = errors.New("jobqueue: queue unknown")

	// ErrHandlerMissing indicates no handler is registered for a job's
	// Kind. The job is failed immediately; it is not retried.
	ErrHandlerMissing = errors.New("jobqueue: handler missing")

	// ErrDuplicate indicates a job holding the same DedupKey already
	// exists (see Pusher.Push for how long a job holds its key).
	ErrDuplicate = errors.New("jobqueue: duplicate dedup key")

	// ErrPastSchedule indicates EnqueueScheduled was called with a time
	// that has already passed.
	ErrPastSchedule = errors.New("jobqueue: scheduled time is in the past")

	// ErrBusy indicates an operation conflicts with a job's live lease,
	// for example removing an Active job before its lease has expired.
	ErrBusy = errors.New("jobqueue: job has a live lease")

	// ErrThrottled names the outcome of a pop when the rate limiter has
	// no token available. Puller.Pop reports that outcome as PopThrottled
	// rather than returning this error, so it never reaches a producer.
	ErrThrottled = errors.New("jobqueue: rate limited")

	// ErrEmpty names the outcome of a pop when a queue has no eligible
	// job, whether because it is empty or paused. Puller.Pop reports that
	// outcome as PopEmpty rather than returning this error.
	ErrEmpty = errors.New("jobqueue: no eligible job")

	// ErrTimeout indicates a handler exceeded its job's TimeoutMs, or an
	// engine call exceeded a caller-supplied deadline.
	ErrTimeout = errors.New("jobqueue: timeout")

	// ErrStalled indicates a job exceeded its queue's MaxStalls and was
	// failed by the stalled-job detector rather than requeued.
	ErrStalled = errors.New("jobqueue: stalled past max reclaims")

	// ErrPermanent is a sentinel a handler may return to bypass the
	// retry ladder and fail the job immediately, regardless of
	// remaining attempts.
	ErrPermanent = errors.New("jobqueue: permanent failure")

	// ErrKVUnavailable indicates the KV store could not be reached.
	// Callers should retry with backoff.
	ErrKVUnavailable = errors.New("jobqueue: kv store unavailable")

	// ErrShuttingDown indicates the engine has begun graceful shutdown
	// and is no longer accepting new jobs.
	ErrShuttingDown = errors.New("jobqueue: shutting down")

	// ErrJobNotFound indicates GetJob (or a Repeater's Get) referenced an
	// id with no corresponding record. RemoveJob of a missing id succeeds,
	// and Retry of a missing id returns ErrBadStatus.
	ErrJobNotFound = errors.New("jobqueue: job not found")

	// ErrBadStatus indicates an operation that is only valid for
	// terminal states (Clean, Retry) was given a non-terminal one.
	ErrBadStatus = errors.New("jobqueue: bad job status for operation")

	// ErrLockLost indicates the caller no longer owns a job's lease,
	// typically because it expired and the stalled-job detector or
	// another worker already reclaimed it.
	ErrLockLost = errors.New("jobqueue: lease lost")
)
