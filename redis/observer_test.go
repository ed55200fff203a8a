package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/kvqueue/jobqueue/job"
)

func TestInspectReturnsJobsByStatus(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1}); err != nil {
			t.Fatal(err)
		}
	}

	waiting, err := c.Inspect(ctx, "emails", job.Waiting, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(waiting) != 3 {
		t.Fatalf("expected 3 waiting jobs, got %d", len(waiting))
	}

	jb, _, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(ctx, "emails", jb.ID, nil, now); err != nil {
		t.Fatal(err)
	}

	completed, err := c.Inspect(ctx, "emails", job.Completed, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed job, got %d", len(completed))
	}
	if completed[0].ID != jb.ID {
		t.Fatalf("expected completed job %d, got %d", jb.ID, completed[0].ID)
	}
}

func TestInspectRejectsUnknownStatus(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Inspect(ctx, "emails", job.Unknown, 0, 10); err == nil {
		t.Fatal("expected ErrBadStatus for an unrecognized status")
	}
}

func TestStatsReportsCountsAndPausedFlag(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1, DelayMs: 60000}); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats(ctx, "emails")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Waiting != 1 {
		t.Fatalf("expected 1 waiting job, got %d", stats.Waiting)
	}
	if stats.Delayed != 1 {
		t.Fatalf("expected 1 delayed job, got %d", stats.Delayed)
	}
	if stats.Paused {
		t.Fatal("expected queue not paused")
	}

	if err := c.Pause(ctx, "emails"); err != nil {
		t.Fatal(err)
	}
	stats, err = c.Stats(ctx, "emails")
	if err != nil {
		t.Fatal(err)
	}
	if !stats.Paused {
		t.Fatal("expected queue paused")
	}
	_ = now
}
