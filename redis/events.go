package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kvqueue/jobqueue/events"
)

// wireEvent is the JSON payload published on EventsChannel, tagged with
// the originating process's node id so a Bridge never re-publishes an
// event it just received back onto its own local bus.
type wireEvent struct {
	NodeID string       `json:"node_id"`
	Event  events.Event `json:"event"`
}

// Bridge fans a local events.Bus out to every other engine process
// attached to the same Redis instance, over the jq:events pub/sub
// channel (spec §4.7's cross-process leg of component C9). Delivery is
// best-effort: loss during network partitions is tolerable, since the
// bridge exists for observability and dashboards, never for the
// engine's own correctness.
type Bridge struct {
	rdb    *goredis.Client
	bus    *events.Bus
	nodeID string
	log    *slog.Logger
}

// NewBridge creates a Bridge that mirrors bus's published events onto
// client's Redis connection and mirrors events published by other
// processes back onto bus. It is not started automatically; call Run.
func NewBridge(client *Client, bus *events.Bus, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		rdb:    client.rdb,
		bus:    bus,
		nodeID: uuid.NewString(),
		log:    log,
	}
}

// Run publishes bus's local events to Redis and republishes events
// received from other processes onto bus, until ctx is canceled. It
// blocks; call it from its own goroutine.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.bus.Subscribe(256)
	defer sub.Unsubscribe()
	pubsub := b.rdb.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.publishLoop(ctx, sub)
	}()
	b.receiveLoop(ctx, pubsub)
	<-done
}

func (b *Bridge) publishLoop(ctx context.Context, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			payload, err := json.Marshal(wireEvent{NodeID: b.nodeID, Event: ev})
			if err != nil {
				b.log.Error("event bridge marshal failed", "err", err)
				continue
			}
			if err := b.rdb.Publish(ctx, EventsChannel, payload).Err(); err != nil {
				b.log.Debug("event bridge publish failed", "err", err)
			}
		}
	}
}

func (b *Bridge) receiveLoop(ctx context.Context, pubsub *goredis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				continue
			}
			if we.NodeID == b.nodeID {
				continue
			}
			b.bus.Publish(we.Event)
		}
	}
}
