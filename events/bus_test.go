package events

import (
	"testing"
	"time"
)

func TestSubscribePublishDelivers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)
	defer sub.Unsubscribe()

	bus.Publish(Event{Kind: Completed, Queue: "emails", JobID: 1})

	select {
	case ev := <-sub.C():
		if ev.Kind != Completed || ev.Queue != "emails" || ev.JobID != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeKindFilter(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4, Completed)
	defer sub.Unsubscribe()

	bus.Publish(Event{Kind: Active, Queue: "emails", JobID: 1})
	bus.Publish(Event{Kind: Completed, Queue: "emails", JobID: 2})

	select {
	case ev := <-sub.C():
		if ev.Kind != Completed || ev.JobID != 2 {
			t.Fatalf("expected only the Completed event to pass the filter, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}

	select {
	case ev, ok := <-sub.C():
		if ok {
			t.Fatalf("expected no further events, got %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)
	defer sub.Unsubscribe()

	bus.Publish(Event{Kind: Active, JobID: 1})
	bus.Publish(Event{Kind: Active, JobID: 2})

	ev := <-sub.C()
	if ev.JobID != 1 {
		t.Fatalf("expected the first published event to survive, got %+v", ev)
	}
	select {
	case ev, ok := <-sub.C():
		if ok {
			t.Fatalf("expected the second event to have been dropped, got %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)
	sub.Unsubscribe()

	_, ok := <-sub.C()
	if ok {
		t.Fatal("expected the channel to be closed after Unsubscribe")
	}
	// Unsubscribe must be idempotent.
	sub.Unsubscribe()
}

func TestPublishAfterUnsubscribeIsANoop(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)
	sub.Unsubscribe()

	bus.Publish(Event{Kind: Active, JobID: 1})
}
