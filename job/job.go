package job

import "time"

// Job represents a single unit of deferred work managed by a queue's
// storage backend.
//
// ID is unique within Queue and is assigned monotonically by the backend;
// ids are never reused, even across process crashes.
//
// Kind is the handler key looked up in the engine's handler registry.
// Payload is opaque to the engine; producers and handlers agree on its
// encoding out of band.
//
// PriorityClass orders waiting jobs: smaller values are dispatched first.
// Among jobs with equal PriorityClass, ID order (equivalently, the order
// of successful Push calls) decides.
//
// AttemptsMade counts pop-and-lease cycles, including the one in flight
// and ones that ended in failure or a stall; AttemptsMax bounds the total
// number of attempts: a failure once AttemptsMade has reached AttemptsMax
// fails the job outright.
//
// AvailableAt is the absolute time at which the job becomes eligible for
// promotion into the waiting set. LeaseUntil is set only while Status is
// Active and marks the time by which the owning worker must either finish
// the job or renew the lease; a worker that lets LeaseUntil lapse loses
// its exclusive claim to the stalled-job detector.
//
// StallCount records how many times the stalled-job detector has reclaimed
// this job from an expired lease. RepeatID, when non-empty, links a
// concrete job back to the repeatable template that spawned it.
//
// Job values returned by a Store are point-in-time snapshots; mutating
// them locally has no effect on persisted state.
type Job struct {
	ID    int64
	Queue string
	Kind  string

	Payload []byte

	PriorityClass int
	AttemptsMade  int
	AttemptsMax   int
	Backoff       BackoffSpec
	TimeoutMs     int64

	Status Status

	AvailableAt time.Time
	LeaseUntil  *time.Time

	Result     []byte
	LastError  string
	StallCount int

	DedupKey string
	RepeatID string

	RetainOnCompletion bool
	RetainOnFailure    bool

	CreatedAt        time.Time
	FirstAttemptedAt *time.Time
	FinishedAt       *time.Time
}

// BackoffSpec describes how long to wait before retrying a failed job.
//
// Strategy selects the delay formula (see BackoffFixed, BackoffExponential).
// BaseMs is the formula's base delay. MaxMs caps the computed delay for the
// exponential strategy; it is ignored by the fixed strategy. A zero MaxMs
// defaults to 10 minutes, matching the spec's default cap.
type BackoffSpec struct {
	Strategy BackoffStrategy
	BaseMs   int64
	MaxMs    int64
}

// BackoffStrategy names a retry-delay formula.
type BackoffStrategy string

const (
	// BackoffFixed always waits BaseMs between attempts.
	BackoffFixed BackoffStrategy = "fixed"

	// BackoffExponential waits base*2^attempt plus up to 10% jitter,
	// capped at MaxMs.
	BackoffExponential BackoffStrategy = "exponential"
)

// RepeatSpec is the cron schedule attached to a repeatable template job.
//
// Expression is a standard 5-field cron expression. Timezone names an
// IANA location (e.g. "America/New_York") in which Expression is
// evaluated, including DST transitions: a fire time that falls in a
// skipped hour is skipped, and a fire time that falls in a repeated hour
// fires once, at its first occurrence.
type RepeatSpec struct {
	Expression string
	Timezone   string
}

// EnqueueOptions customizes how Push schedules and retries a new job.
//
// A zero value requests the queue's configured defaults: DelayMs of 0,
// PriorityClass 2, and the queue's default Attempts/Backoff/TimeoutMs and
// retention flags.
type EnqueueOptions struct {
	DelayMs            int64
	Attempts           int
	Backoff            BackoffSpec
	PriorityClass      int
	TimeoutMs          int64
	RetainOnCompletion bool
	RetainOnFailure    bool
	DedupKey           string

	// RepeatID links the enqueued job back to the repeatable template
	// that spawned it. It is set by the engine's repeatable expansion,
	// never by a producer calling Enqueue directly.
	RepeatID string
}
