package engine

import (
	"context"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

// CleanBatchSize bounds how many jobs one cleanup pass over a terminal
// set scans, so that cleanup never becomes a long-running KV script. A
// Clean call covering both terminal states makes one pass per set.
const CleanBatchSize = 1000

// Cleaner provides a mechanism for permanently removing terminal jobs
// from storage.
//
// Cleaner is intended for administrative and retention-management use.
// It does not participate in normal job processing and must not modify
// non-terminal jobs.
type Cleaner interface {
	// Clean deletes up to CleanBatchSize jobs of queue per terminal set
	// matching status whose FinishedAt is older than olderThan, and
	// returns the number removed. If status is job.Unknown, both
	// Completed and Failed jobs are eligible, so up to twice
	// CleanBatchSize may be removed. Clean returns ErrBadStatus if status
	// names a non-terminal state.
	Clean(ctx context.Context, queue string, status job.Status, olderThan time.Duration) (int64, error)
}
