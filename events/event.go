// Package events implements the engine's in-process lifecycle event bus
// (component C9): a fan-out of structured events to subscribers for
// logging, metrics, and dashboards. Delivery is at-most-once and is used
// only for observability, never for correctness.
package events

import "time"

// Kind names a lifecycle event.
type Kind string

const (
	Waiting   Kind = "waiting"
	Active    Kind = "active"
	Completed Kind = "completed"
	Failed    Kind = "failed"
	Stalled   Kind = "stalled"
	Error     Kind = "error"
	Paused    Kind = "paused"
	Resumed   Kind = "resumed"
)

// Event is one lifecycle occurrence, emitted in state-transition order
// within a process. Cross-process event streams (see the redis
// subpackage's pub/sub bridge) may reorder.
type Event struct {
	Queue string
	JobID int64
	Kind  Kind
	At    time.Time
	Data  map[string]any
}
