// Package job defines the persisted representation of a unit of deferred
// work as it is stored and managed by the engine.
//
// A Job is the authoritative record backing one entry in a queue's key
// schema: identity (Queue, ID), dispatch data (Kind, Payload), scheduling
// and retry metadata (PriorityClass, AttemptsMade/Max, Backoff, timestamps),
// and outcome (Result, LastError).
//
// Job values returned by a Store are snapshots. Mutating a Job in place
// does not change the underlying queue state; transitions must be
// performed through the Pusher/Puller/Observer/Cleaner interfaces in the
// engine package.
package job
