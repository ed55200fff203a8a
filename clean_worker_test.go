package engine_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	engine "github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/job"
)

type mockCleaner struct {
	calls atomic.Int64
}

func (m *mockCleaner) Clean(ctx context.Context, queue string, status job.Status, olderThan time.Duration) (int64, error) {
	m.calls.Add(1)
	return 1, nil
}

func TestCleanWorkerRunsPeriodically(t *testing.T) {
	cleaner := &mockCleaner{}
	w := engine.NewCleanWorker(cleaner, &engine.CleanConfig{
		Queue:    "emails",
		Interval: 20 * time.Millisecond,
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}

	if cleaner.calls.Load() == 0 {
		t.Fatal("expected the cleaner to run at least once")
	}
}

func TestCleanWorkerLifecycleErrors(t *testing.T) {
	cleaner := &mockCleaner{}
	w := engine.NewCleanWorker(cleaner, &engine.CleanConfig{
		Queue:    "emails",
		Interval: time.Second,
	}, slog.Default())

	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("expected ErrDoubleStarted")
	}
	if err := w.Stop(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(time.Second); err == nil {
		t.Fatal("expected ErrDoubleStopped")
	}
}
