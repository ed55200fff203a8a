package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kvqueue/jobqueue/events"
	gredis "github.com/kvqueue/jobqueue/redis"
)

func TestBridgeRelaysAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)

	busA := events.NewBus()
	clientA := gredis.NewClient(gredis.Options{Addr: mr.Addr()}, nil)
	bridgeA := gredis.NewBridge(clientA, busA, nil)

	busB := events.NewBus()
	clientB := gredis.NewClient(gredis.Options{Addr: mr.Addr()}, nil)
	bridgeB := gredis.NewBridge(clientB, busB, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridgeA.Run(ctx)
	go bridgeB.Run(ctx)

	// Give both subscribers time to register with miniredis before
	// publishing, since Subscribe is asynchronous from the publisher's
	// point of view.
	time.Sleep(50 * time.Millisecond)

	subB := busB.Subscribe(8)
	defer subB.Unsubscribe()

	busA.Publish(events.Event{Queue: "emails", JobID: 42, Kind: events.Completed, At: time.Now()})

	select {
	case ev := <-subB.C():
		if ev.Queue != "emails" || ev.JobID != 42 || ev.Kind != events.Completed {
			t.Fatalf("unexpected relayed event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
}

func TestBridgeDoesNotEchoOwnEvents(t *testing.T) {
	mr := miniredis.RunT(t)

	bus := events.NewBus()
	client := gredis.NewClient(gredis.Options{Addr: mr.Addr()}, nil)
	bridge := gredis.NewBridge(client, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	time.Sleep(50 * time.Millisecond)

	sub := bus.Subscribe(8)
	defer sub.Unsubscribe()

	bus.Publish(events.Event{Queue: "emails", JobID: 1, Kind: events.Waiting, At: time.Now()})

	// The direct in-process fan-out delivers exactly one copy; the
	// round trip through Redis must not deliver a second.
	select {
	case <-sub.C():
	case <-time.After(time.Second):
		t.Fatal("expected the direct in-process delivery")
	}
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected echoed event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
