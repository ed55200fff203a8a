package engine

import (
	"context"
	"time"
)

// RateLimiter implements a token bucket shared across every worker
// process attached to the same KV store for a given queue.
//
// Implementations must perform the check-and-decrement as one scripted
// operation against the KV store, so that concurrent callers never
// collectively exceed max over any window.
type RateLimiter interface {
	// Acquire attempts to take one token from queue's bucket. If the
	// bucket's window has elapsed since the last reset, it refills to
	// max first. ok is true if a token was taken; otherwise retryAfter
	// names the duration until the next reset.
	Acquire(ctx context.Context, queue string, max int, window time.Duration, now time.Time) (ok bool, retryAfter time.Duration, err error)
}
