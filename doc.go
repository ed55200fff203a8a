// Package engine implements a multi-tenant background job engine backed by
// a shared key-value store (Redis, via the redis subpackage).
//
// # Overview
//
// The engine accepts units of deferred work from producers and executes
// them on a pool of per-queue workers, with per-queue concurrency limits,
// rate limiting, priority ordering, retries with backoff, delayed and
// repeatable (cron) scheduling, at-least-once delivery, and operational
// visibility (stats, inspection, manual retry, pause/resume, cleanup).
//
// The engine treats the KV store as the sole source of truth. No worker
// process holds authoritative state; any process may crash and be
// replaced without data loss beyond the in-flight attempt of the jobs it
// currently leases, which become stalled and are retried.
//
// # Delivery Semantics
//
// The engine provides at-least-once processing guarantees. A job may be
// delivered more than once if a worker crashes before completing it, its
// lease expires, or the stalled-job detector reclaims it concurrently
// with the original worker finishing. Handlers must therefore be
// idempotent.
//
// # Visibility Timeout (Lease Model)
//
// When a job is popped, it transitions from Waiting to Active and
// receives a lease (LeaseUntil). While the lease is valid, the job is not
// eligible for popping by other workers. The Worker automatically renews
// the lease while its handler is running. If the lease expires before
// completion, the stalled-job detector returns the job to Waiting.
//
// # State Machine
//
//	[∅] -> Delayed -> Waiting -> Active -> Completed
//	                     ^          |
//	                     └──────────┘ (retry, after backoff)
//	                                |
//	                                v
//	                              Failed
//
// Completed and Failed are terminal; Failed only re-enters Waiting through
// an explicit Retry call.
//
// # Retry Policy
//
// Retry behavior is controlled by each job's BackoffSpec. When a handler
// returns an error, if attempts remain the job is rescheduled with a
// computed backoff delay; otherwise it transitions to Failed. A handler
// that returns ErrPermanent skips the retry ladder and fails immediately.
//
// # Interfaces
//
// The engine defines the following storage-port interfaces, implemented
// by the redis subpackage:
//
//	Pusher      — enqueue jobs, including delayed and repeatable ones
//	Puller      — manage pop-and-lease, promotion, retry/completion, reclaim
//	Observer    — inspect job state and per-queue statistics
//	Cleaner     — remove terminal jobs
//	RateLimiter — per-queue token-bucket admission control
//	Repeater    — register and expand cron-based repeatable templates
//
// These interfaces allow the KV backend to be replaced without coupling
// queue logic to a specific client library.
//
// # Concurrency Model
//
// Each attached queue runs its own Worker (a fixed-size pool of handler
// goroutines fed by a self-popping loop), a promotion loop (delayed ->
// waiting), and a stalled-job detector. There are
// no in-process locks on the hot path; correctness depends entirely on
// the KV store's atomic scripted transactions.
//
// Shutdown is graceful: pop loops stop first, then in-flight handlers are
// allowed to finish, subject to a configurable timeout.
//
// # Event Propagation
//
// Engine.Bus returns the in-process lifecycle event bus (waiting, active,
// completed, failed, stalled, error, paused, resumed). Within a process
// this is sufficient for the jobmetrics collectors and any local
// dashboard. A host that runs more than one engine process against the
// same Redis instance and wants cross-process visibility can bridge
// Engine.Bus to the redis subpackage's Bridge, which relays events over
// the jq:events pub/sub channel; that relay's lifecycle is the host's to
// manage, same as the Store's.
package engine
