package engine

import (
	"testing"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

func TestComputeBackoffFixed(t *testing.T) {
	spec := job.BackoffSpec{Strategy: job.BackoffFixed, BaseMs: 5000}
	for attempt := 0; attempt < 4; attempt++ {
		got := ComputeBackoff(spec, attempt)
		if got != 5*time.Second {
			t.Fatalf("attempt %d: expected fixed 5s delay, got %v", attempt, got)
		}
	}
}

func TestComputeBackoffExponentialGrowsAndCaps(t *testing.T) {
	spec := job.BackoffSpec{Strategy: job.BackoffExponential, BaseMs: 1000, MaxMs: 8000}

	prev := time.Duration(0)
	for attempt := 0; attempt < 3; attempt++ {
		got := ComputeBackoff(spec, attempt)
		base := time.Duration(1000*(1<<uint(attempt))) * time.Millisecond
		if got < base {
			t.Fatalf("attempt %d: expected at least base delay %v, got %v", attempt, base, got)
		}
		if got < prev {
			t.Fatalf("attempt %d: expected non-decreasing delay, got %v after %v", attempt, got, prev)
		}
		prev = got
	}

	// attempt 5 would be 1000*2^5 = 32000ms without a cap; MaxMs pins it.
	got := ComputeBackoff(spec, 5)
	if got > 8*time.Second {
		t.Fatalf("expected delay capped at MaxMs, got %v", got)
	}
}

func TestComputeBackoffExponentialDefaultCap(t *testing.T) {
	spec := job.BackoffSpec{Strategy: job.BackoffExponential, BaseMs: 60000}
	got := ComputeBackoff(spec, 10)
	if got > 10*time.Minute {
		t.Fatalf("expected delay capped at the 10-minute default, got %v", got)
	}
}

func TestComputeBackoffUnknownStrategyBehavesAsExponential(t *testing.T) {
	spec := job.BackoffSpec{Strategy: "bogus", BaseMs: 1000, MaxMs: 4000}
	got := ComputeBackoff(spec, 0)
	if got < time.Second || got > 4*time.Second {
		t.Fatalf("expected an exponential-shaped delay between 1s and 4s, got %v", got)
	}
}
