package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

// RateLimit configures a queue's shared token bucket: Max tokens are
// available, refilled in full every Window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// QueueDefaults holds the per-job defaults a queue applies when
// EnqueueOptions leaves a field unset.
type QueueDefaults struct {
	Attempts           int
	Backoff            job.BackoffSpec
	TimeoutMs          int64
	RetainOnCompletion bool
	RetainOnFailure    bool
}

// QueueConfig is a queue's static, runtime-immutable configuration.
//
// Priority is used only by the admin surface when presenting stats
// across queues and by producers that multiplex across queues; it does
// not affect within-queue ordering, which is governed by PriorityClass
// on individual jobs.
type QueueConfig struct {
	Name        string
	Priority    int
	Concurrency int
	RateLimit   *RateLimit
	Defaults    QueueDefaults

	// PromoteInterval is how often the delayed->waiting promotion loop
	// runs for this queue. Zero defaults to 100ms.
	PromoteInterval time.Duration

	// LeaseBuffer is added on top of a job's TimeoutMs when computing
	// the lease granted by Pop, so that a worker's own timeout-driven
	// cancellation always fires before the lease would otherwise expire.
	LeaseBuffer time.Duration

	// StallCheckInterval is how often the stalled-job detector scans
	// this queue's active set. Zero defaults to 30s.
	StallCheckInterval time.Duration

	// MaxStalls is how many times a job may be reclaimed from an
	// expired lease before it is failed outright. Zero defaults to 1.
	MaxStalls int
}

func (c QueueConfig) promoteInterval() time.Duration {
	if c.PromoteInterval > 0 {
		return c.PromoteInterval
	}
	return 100 * time.Millisecond
}

func (c QueueConfig) leaseBuffer() time.Duration {
	if c.LeaseBuffer > 0 {
		return c.LeaseBuffer
	}
	return 5 * time.Second
}

func (c QueueConfig) stallCheckInterval() time.Duration {
	if c.StallCheckInterval > 0 {
		return c.StallCheckInterval
	}
	return 30 * time.Second
}

func (c QueueConfig) maxStalls() int {
	if c.MaxStalls > 0 {
		return c.MaxStalls
	}
	return 1
}

// HandlerFunc is the user-provided function that processes a job.
//
// The provided context carries a deadline derived from the job's
// TimeoutMs and is canceled when the engine is shutting down or the
// job's lease is lost. HandlerFunc must be idempotent: the engine
// provides at-least-once delivery, and a job may be executed more than
// once if a worker crashes or fails to complete it before its lease
// expires.
//
// A nil return marks the job Completed with result as its stored
// outcome. A non-nil return drives the retry ladder, unless it is (or
// wraps, via errors.Is) ErrPermanent, in which case the job fails
// immediately regardless of remaining attempts.
type HandlerFunc func(ctx context.Context, j *job.Job) (result []byte, err error)

// Registry holds the static configuration of every registered queue and
// the handler functions keyed by job Kind, both read-mostly after
// startup.
type Registry struct {
	mu       sync.RWMutex
	queues   map[string]QueueConfig
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		queues:   make(map[string]QueueConfig),
		handlers: make(map[string]HandlerFunc),
	}
}

// RegisterQueue adds or replaces a queue's configuration. It is intended
// to be called during startup, before Engine.Start.
func (r *Registry) RegisterQueue(cfg QueueConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[cfg.Name] = cfg
}

// Queue returns the configuration for name and whether it was found.
func (r *Registry) Queue(name string) (QueueConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.queues[name]
	return cfg, ok
}

// Queues returns a snapshot of every registered queue configuration.
func (r *Registry) Queues() []QueueConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]QueueConfig, 0, len(r.queues))
	for _, cfg := range r.queues {
		ret = append(ret, cfg)
	}
	return ret
}

// HandleFunc registers handler under kind. Registering the same kind
// twice replaces the previous handler.
func (r *Registry) HandleFunc(kind string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// Handler returns the handler registered for kind and whether one exists.
func (r *Registry) Handler(kind string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}
