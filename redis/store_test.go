package redis_test

import (
	"context"
	"testing"
	"time"

	engine "github.com/kvqueue/jobqueue"
	"github.com/kvqueue/jobqueue/job"
)

func TestPushPopComplete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	id, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 3})
	if err != nil {
		t.Fatal(err)
	}

	jb, status, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopOK {
		t.Fatalf("expected PopOK, got %v", status)
	}
	if jb.ID != id {
		t.Fatalf("expected job %d, got %d", id, jb.ID)
	}
	if jb.Status != job.Active {
		t.Fatalf("expected Active, got %v", jb.Status)
	}

	if err := c.Complete(ctx, "emails", id, []byte("sent"), now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetJob(ctx, "emails", id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.Completed {
		t.Fatalf("expected Completed, got %v", got.Status)
	}
	if string(got.Result) != "sent" {
		t.Fatalf("expected result %q, got %q", "sent", got.Result)
	}
}

func TestPopEmptyQueue(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	jb, status, _, err := c.Pop(ctx, "emails", time.Minute, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopEmpty {
		t.Fatalf("expected PopEmpty, got %v", status)
	}
	if jb != nil {
		t.Fatal("expected nil job")
	}
}

func TestFailRetriesThenFails(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	id, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 2})
	if err != nil {
		t.Fatal(err)
	}

	jb, _, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}

	// First failure: attempts remain, job goes back to Delayed.
	if err := c.Fail(ctx, "emails", jb.ID, "boom", false, time.Second, now); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetJob(ctx, "emails", id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.Delayed {
		t.Fatalf("expected Delayed after first failure, got %v", got.Status)
	}
	if got.AttemptsMade != 1 {
		t.Fatalf("expected AttemptsMade 1, got %d", got.AttemptsMade)
	}

	// Promote it back to Waiting and pop it again.
	ids, err := c.PromoteDue(ctx, "emails", now.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 promoted job, got %d", len(ids))
	}

	jb2, status, _, err := c.Pop(ctx, "emails", time.Minute, now.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopOK {
		t.Fatalf("expected PopOK on second pop, got %v", status)
	}

	// Second failure: attempts exhausted, job fails outright.
	if err := c.Fail(ctx, "emails", jb2.ID, "boom again", false, time.Second, now.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	got2, err := c.GetJob(ctx, "emails", id)
	if err != nil {
		t.Fatal(err)
	}
	if got2.Status != job.Failed {
		t.Fatalf("expected Failed after exhausting attempts, got %v", got2.Status)
	}
	if got2.LastError != "boom again" {
		t.Fatalf("expected last error %q, got %q", "boom again", got2.LastError)
	}
}

func TestPermanentFailureSkipsRetryLadder(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	id, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 5})
	if err != nil {
		t.Fatal(err)
	}
	jb, _, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Fail(ctx, "emails", jb.ID, "permanent", true, 0, now); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetJob(ctx, "emails", id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.Failed {
		t.Fatalf("expected Failed, got %v", got.Status)
	}
	if got.AttemptsMade != 1 {
		t.Fatalf("expected AttemptsMade 1 despite 5 allowed, got %d", got.AttemptsMade)
	}
}

func TestDedupRejectsDuplicate(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	opts := job.EnqueueOptions{Attempts: 1, DedupKey: "order-42"}
	id1, err := c.Push(ctx, "orders", "charge", []byte("a"), opts)
	if err != nil {
		t.Fatal(err)
	}

	id2, err := c.Push(ctx, "orders", "charge", []byte("b"), opts)
	if err == nil {
		t.Fatal("expected ErrDuplicate")
	}
	if id2 != id1 {
		t.Fatalf("expected the duplicate id to match the live job %d, got %d", id1, id2)
	}
}

func TestDelayedJobStaysHiddenUntilPromoted(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	_, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1, DelayMs: 5000})
	if err != nil {
		t.Fatal(err)
	}

	_, status, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopEmpty {
		t.Fatalf("expected PopEmpty before promotion, got %v", status)
	}

	ids, err := c.PromoteDue(ctx, "emails", now.Add(6*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 promoted job, got %d", len(ids))
	}

	_, status, _, err = c.Pop(ctx, "emails", time.Minute, now.Add(6*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopOK {
		t.Fatalf("expected PopOK after promotion, got %v", status)
	}
}

func TestReclaimStalledRequeuesUntilMaxStalls(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	_, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	jb, _, _, err := c.Pop(ctx, "emails", time.Second, now)
	if err != nil {
		t.Fatal(err)
	}

	// Lease expires after 1s; scan well past that.
	reclaimed, err := c.ReclaimStalled(ctx, "emails", 1, now.Add(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(reclaimed) != 1 {
		t.Fatalf("expected 1 reclaimed job, got %d", len(reclaimed))
	}
	if reclaimed[0].Status != job.Waiting {
		t.Fatalf("expected job requeued to Waiting on first stall, got %v", reclaimed[0].Status)
	}

	jb2, _, _, err := c.Pop(ctx, "emails", time.Second, now.Add(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if jb2.ID != jb.ID {
		t.Fatal("expected to re-pop the same job")
	}

	reclaimed2, err := c.ReclaimStalled(ctx, "emails", 1, now.Add(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(reclaimed2) != 1 {
		t.Fatalf("expected 1 reclaimed job on second stall, got %d", len(reclaimed2))
	}
	if reclaimed2[0].Status != job.Failed {
		t.Fatalf("expected job failed after exceeding max stalls, got %v", reclaimed2[0].Status)
	}
}

func TestRetryResetsFailedJob(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	id, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	jb, _, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Fail(ctx, "emails", jb.ID, "boom", false, time.Second, now); err != nil {
		t.Fatal(err)
	}

	if err := c.Retry(ctx, "emails", id); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetJob(ctx, "emails", id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.Waiting {
		t.Fatalf("expected Waiting after retry, got %v", got.Status)
	}
	if got.AttemptsMade != 0 {
		t.Fatalf("expected AttemptsMade reset to 0, got %d", got.AttemptsMade)
	}
}

func TestRemoveJobRefusesLiveLease(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	_, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	jb, _, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveJob(ctx, "emails", jb.ID, now); err == nil {
		t.Fatal("expected ErrBusy while lease is live")
	}

	if err := c.RemoveJob(ctx, "emails", jb.ID, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("expected removal to succeed once the lease has lapsed: %v", err)
	}
	if _, err := c.GetJob(ctx, "emails", jb.ID); err == nil {
		t.Fatal("expected job to be gone")
	}
}

func TestPauseWithholdsPop(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1}); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(ctx, "emails"); err != nil {
		t.Fatal(err)
	}

	_, status, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopEmpty {
		t.Fatalf("expected PopEmpty while paused, got %v", status)
	}

	if err := c.Resume(ctx, "emails"); err != nil {
		t.Fatal(err)
	}
	_, status, _, err = c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopOK {
		t.Fatalf("expected PopOK after resume, got %v", status)
	}
}

func TestRateLimitThrottlesPop(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	limit := &engine.RateLimit{Max: 1, Window: 10 * time.Second}
	if err := c.ConfigureQueue(ctx, "sms", limit); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Push(ctx, "sms", "otp", []byte("1"), job.EnqueueOptions{Attempts: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Push(ctx, "sms", "otp", []byte("2"), job.EnqueueOptions{Attempts: 1}); err != nil {
		t.Fatal(err)
	}

	_, status, _, err := c.Pop(ctx, "sms", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopOK {
		t.Fatalf("expected first pop to succeed, got %v", status)
	}

	_, status, retryAfter, err := c.Pop(ctx, "sms", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopThrottled {
		t.Fatalf("expected second pop to be throttled, got %v", status)
	}
	if retryAfter <= 0 {
		t.Fatal("expected a positive retry-after duration")
	}

	_, status, _, err = c.Pop(ctx, "sms", time.Minute, now.Add(11*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if status != engine.PopOK {
		t.Fatalf("expected pop to succeed once the window refills, got %v", status)
	}
}

func TestCleanRemovesOldTerminalJobs(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	id, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	jb, _, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(ctx, "emails", jb.ID, nil, now); err != nil {
		t.Fatal(err)
	}

	n, err := c.Clean(ctx, "emails", job.Completed, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected nothing cleaned yet, got %d", n)
	}

	n, err = c.Clean(ctx, "emails", job.Completed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job cleaned, got %d", n)
	}
	if _, err := c.GetJob(ctx, "emails", id); err == nil {
		t.Fatal("expected job to be gone after Clean")
	}
}

func TestCleanRespectsRetention(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	_, err := c.Push(ctx, "emails", "welcome", []byte("hi"), job.EnqueueOptions{Attempts: 1, RetainOnCompletion: true})
	if err != nil {
		t.Fatal(err)
	}
	jb, _, _, err := c.Pop(ctx, "emails", time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(ctx, "emails", jb.ID, nil, now); err != nil {
		t.Fatal(err)
	}

	n, err := c.Clean(ctx, "emails", job.Completed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected retained job to survive Clean, got %d removed", n)
	}
	if _, err := c.GetJob(ctx, "emails", jb.ID); err != nil {
		t.Fatal("expected retained job to still exist")
	}
}

func TestRepeatableExpansionCycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	repeatID, err := c.PushRepeatable(ctx, "reports", "nightly", []byte("go"), job.RepeatSpec{
		Expression: "0 0 * * *",
		Timezone:   "UTC",
	}, job.EnqueueOptions{Attempts: 1})
	if err != nil {
		t.Fatal(err)
	}

	tmpl, err := c.Get(ctx, "reports", repeatID)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.LiveJobID == 0 {
		t.Fatal("expected a live job id after PushRepeatable")
	}

	_, ok, err := c.CompleteLive(ctx, "reports", repeatID, tmpl.LiveJobID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected CompleteLive to succeed for the current live job")
	}

	_, ok2, err := c.CompleteLive(ctx, "reports", repeatID, tmpl.LiveJobID)
	if err != nil {
		t.Fatal(err)
	}
	if ok2 {
		t.Fatal("expected a second CompleteLive for the same job to be a no-op")
	}
}
