package engine

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

// defaultMaxBackoff is the cap applied to the exponential strategy when a
// job's BackoffSpec.MaxMs is zero, matching the spec's default.
const defaultMaxBackoff = 10 * time.Minute

// ComputeBackoff returns the retry delay after a failed attempt, where
// attemptsMade is the number of attempts made before the one that failed
// (0 for the first failure; Job.AttemptsMade minus one, since the pop that
// started the attempt already counted it), following spec.Strategy:
//
//   - BackoffFixed always returns spec.BaseMs.
//   - BackoffExponential returns min(base*2^attemptsMade + jitter, max),
//     where jitter is uniform in [0, base*2^attemptsMade*0.1).
//
// An unrecognized strategy is treated as BackoffExponential.
func ComputeBackoff(spec job.BackoffSpec, attemptsMade int) time.Duration {
	base := time.Duration(spec.BaseMs) * time.Millisecond
	if spec.Strategy == job.BackoffFixed {
		return base
	}
	max := time.Duration(spec.MaxMs) * time.Millisecond
	if max <= 0 {
		max = defaultMaxBackoff
	}
	exp := float64(base) * math.Pow(2, float64(attemptsMade))
	jitter := rand.Float64() * exp * 0.1
	delay := exp + jitter
	if delay > float64(max) {
		delay = float64(max)
	}
	return time.Duration(delay)
}
