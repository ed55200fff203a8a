package engine

import (
	"context"

	"github.com/kvqueue/jobqueue/job"
)

// Stats is an O(1) snapshot of a queue's sorted-set cardinalities.
type Stats struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
	Delayed   int64
	Paused    bool
}

// Observer provides read-only access to jobs and queue-level statistics.
//
// Observer does not modify job state and must not participate in
// visibility-timeout or lifecycle transitions.
type Observer interface {
	// GetJob returns the job identified by id within queue.
	//
	// If no job with the given id exists, GetJob returns ErrJobNotFound.
	GetJob(ctx context.Context, queue string, id int64) (*job.Job, error)

	// Inspect paginates over queue's jobs in the given status, ordered
	// by the status's natural sorted-set score (creation/priority order
	// for Waiting, AvailableAt for Delayed, LeaseUntil for Active,
	// FinishedAt for Completed/Failed). from and to are zero-based
	// offsets into that ordering, to exclusive.
	//
	// If status is job.Unknown, Inspect returns ErrBadStatus.
	Inspect(ctx context.Context, queue string, status job.Status, from, to int64) ([]*job.Job, error)

	// Stats returns queue's cardinality snapshot. Stats must not scan;
	// every counter is the cardinality of a sorted set.
	Stats(ctx context.Context, queue string) (Stats, error)
}
