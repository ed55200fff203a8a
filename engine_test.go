package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	engine "github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/job"
	gredis "github.com/kvqueue/jobqueue/redis"
)

func newTestEngine(t *testing.T, queue string, configure func(*engine.QueueConfig)) (*engine.Engine, *engine.Registry) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := gredis.NewClient(gredis.Options{Addr: mr.Addr()}, nil)

	registry := engine.NewRegistry()
	cfg := engine.QueueConfig{
		Name:        queue,
		Concurrency: 2,
		Defaults: engine.QueueDefaults{
			Attempts: 3,
			Backoff:  job.BackoffSpec{Strategy: job.BackoffFixed, BaseMs: 10},
		},
	}
	if configure != nil {
		configure(&cfg)
	}
	registry.RegisterQueue(cfg)

	return engine.New(engine.Config{Store: store, Registry: registry, ShutdownGrace: 5 * time.Second}), registry
}

func TestEngineProcessesEnqueuedJob(t *testing.T) {
	e, registry := newTestEngine(t, "emails", nil)

	var mu sync.Mutex
	var handled *job.Job
	done := make(chan struct{})
	registry.HandleFunc("welcome", func(ctx context.Context, jb *job.Job) ([]byte, error) {
		mu.Lock()
		handled = jb
		mu.Unlock()
		close(done)
		return []byte("ok"), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown(context.Background())

	id, err := e.Enqueue(ctx, "emails", "welcome", []byte("payload"), job.EnqueueOptions{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the job to be handled")
	}

	mu.Lock()
	defer mu.Unlock()
	if handled == nil || handled.ID != id {
		t.Fatalf("expected to handle job %d, got %+v", id, handled)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := e.GetJob(ctx, "emails", id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == job.Completed {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job never reached Completed")
}

func TestEngineRetriesFailedHandlerThenSucceeds(t *testing.T) {
	e, registry := newTestEngine(t, "emails", nil)

	var calls int32
	var mu sync.Mutex
	done := make(chan struct{})
	registry.HandleFunc("welcome", func(ctx context.Context, jb *job.Job) ([]byte, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 2 {
			return nil, assertableErr{"transient failure"}
		}
		close(done)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown(context.Background())

	if _, err := e.Enqueue(ctx, "emails", "welcome", []byte("p"), job.EnqueueOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the job to succeed after a retry")
	}
}

func TestEngineQueueUnknownRejectsEnqueue(t *testing.T) {
	e, _ := newTestEngine(t, "emails", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown(context.Background())

	if _, err := e.Enqueue(ctx, "nope", "welcome", nil, job.EnqueueOptions{}); err != engine.ErrQueueUnknown {
		t.Fatalf("expected ErrQueueUnknown, got %v", err)
	}
}

func TestEnqueueScheduledRejectsPastTime(t *testing.T) {
	e, _ := newTestEngine(t, "emails", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown(context.Background())

	if _, err := e.EnqueueScheduled(ctx, "emails", "welcome", nil, time.Now().Add(-time.Minute), job.EnqueueOptions{}); err != engine.ErrPastSchedule {
		t.Fatalf("expected ErrPastSchedule, got %v", err)
	}
}

func TestEnqueueRejectedAfterShutdown(t *testing.T) {
	e, _ := newTestEngine(t, "emails", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Enqueue(ctx, "emails", "welcome", nil, job.EnqueueOptions{}); err != engine.ErrShuttingDown {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
	if _, err := e.EnqueueScheduled(ctx, "emails", "welcome", nil, time.Now().Add(time.Minute), job.EnqueueOptions{}); err != engine.ErrShuttingDown {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

type assertableErr struct{ msg string }

func (e assertableErr) Error() string { return e.msg }
