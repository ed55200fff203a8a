// Package redis is the engine's KV backend (component C1/C2), implementing
// engine.Pusher, engine.Puller, engine.Observer, engine.Cleaner and
// engine.Repeater against Redis via github.com/redis/go-redis/v9. Every
// check-then-act sequence the engine's interfaces require is expressed as
// a Lua script (see scripts.go) so it runs atomically on the server,
// regardless of how many engine processes share the store.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/kvqueue/jobqueue"
)

// Options configures the underlying Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// BreakerTimeout is how long the circuit breaker stays open after
	// tripping before allowing a trial request. Zero defaults to 30s.
	BreakerTimeout time.Duration

	// BreakerThreshold is the number of consecutive failures that trips
	// the breaker. Zero defaults to 5.
	BreakerThreshold uint32
}

// Client is a Store backed by a single Redis connection (or replicated
// primary), guarded by a circuit breaker so that a sustained Redis
// outage surfaces as engine.ErrKVUnavailable instead of cascading
// timeouts through every caller.
type Client struct {
	rdb *goredis.Client
	cb  *gobreaker.CircuitBreaker
	log *slog.Logger
}

var _ engine.Store = (*Client)(nil)

// NewClient constructs a Client. It does not connect eagerly; the first
// command dials the connection pool lazily.
func NewClient(opts Options, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "jobqueue-redis",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("redis circuit breaker state change", "name", name, "from", from, "to", to)
		},
	})
	return &Client{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		cb:  cb,
		log: log,
	}
}

// guard runs fn through the circuit breaker, translating a tripped
// breaker or a network-level Redis failure into engine.ErrKVUnavailable.
func (c *Client) guard(fn func() (interface{}, error)) (interface{}, error) {
	v, err := c.cb.Execute(fn)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, engine.ErrKVUnavailable
	}
	if isConnErr(err) {
		return nil, engine.ErrKVUnavailable
	}
	return v, err
}

func isConnErr(err error) bool {
	if err == nil || errors.Is(err, goredis.Nil) {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// HealthCheck pings the Redis connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.guard(func() (interface{}, error) {
		return c.rdb.Ping(ctx).Result()
	})
	return err
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
