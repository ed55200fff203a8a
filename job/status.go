package job

import "fmt"

// Status represents the current lifecycle state of a Job.
//
// The state machine is:
//
//	[∅]     -> Delayed    (Push with delay > 0)
//	[∅]     -> Waiting    (Push with delay = 0, or a due Delayed job)
//	Waiting -> Active     (pop-and-lease)
//	Active  -> Completed  (handler success)
//	Active  -> Delayed    (handler failure, attempts remain; AvailableAt = now + backoff)
//	Active  -> Failed     (handler failure, attempts exhausted, or PERMANENT)
//
// Completed and Failed are terminal; a Failed job only re-enters Waiting
// through an explicit Retry. Paused is reserved: it names the queue-level
// pause flag for filtering purposes but is never assigned to an
// individual Job, since pausing a queue only withholds Waiting->Active
// promotion and never touches a job's own Status (see the engine
// package's Pause/Resume). Unknown is reserved as a zero value and may be
// used to indicate an unspecified or invalid state in filtering contexts.
type Status uint8

const (
	// Unknown represents an unspecified or invalid job state.
	// It is the zero value of Status.
	Unknown Status = iota

	// Waiting indicates the job is eligible for pop-and-lease; AvailableAt
	// has already elapsed.
	Waiting

	// Delayed indicates the job is not yet eligible; it becomes Waiting
	// once AvailableAt elapses.
	Delayed

	// Active indicates the job has been pulled and is currently owned by
	// a worker. LeaseUntil defines the visibility timeout.
	Active

	// Completed indicates successful completion. Terminal.
	Completed

	// Failed indicates the job exhausted its attempts, was killed by the
	// stalled-job detector, or the handler returned a permanent error.
	// Terminal until an explicit Retry.
	Failed

	// Paused is reserved for queue-level filtering; see the type doc.
	Paused
)

func statusToString(status Status) string {
	switch status {
	case Waiting:
		return "waiting"
	case Delayed:
		return "delayed"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

func statusFromString(status string) (Status, error) {
	switch status {
	case "waiting":
		return Waiting, nil
	case "delayed":
		return Delayed, nil
	case "active":
		return Active, nil
	case "completed":
		return Completed, nil
	case "failed":
		return Failed, nil
	case "paused":
		return Paused, nil
	case "unknown":
		return Unknown, nil
	default:
		return 0, fmt.Errorf("unknown status: %s", status)
	}
}

// ParseStatus converts a string representation of a status into a Status
// value. Recognized values are "waiting", "delayed", "active",
// "completed", "failed", "paused" and "unknown". An error is returned for
// unrecognized strings.
func ParseStatus(s string) (Status, error) {
	return statusFromString(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(statusToString(s)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	status, err := statusFromString(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// String returns the canonical string representation of the status.
func (s Status) String() string {
	return statusToString(s)
}
