package notifications

import (
	"context"
	"encoding/json"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// eventChannel is the Redis pub/sub channel gallery events travel on.
// A single channel is enough; events carry their collection.
const eventChannel = "gallery:events"

// Notifier publishes gallery events into Redis so every running
// instance can fan them out to its own websocket clients.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client turns publishing into a
// no-op, which single-instance deployments rely on.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishEvent sends an event to every instance's hub.
func (n *Notifier) PublishEvent(ctx context.Context, event Event) error {
	if n.rdb == nil {
		return nil
	}
	data, err := event.Encode()
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, eventChannel, string(data)).Err()
}

// StartEventSubscriber subscribes to the gallery event channel and
// calls onEvent for each decoded event until ctx is cancelled.
func (n *Notifier) StartEventSubscriber(ctx context.Context, onEvent func(Event)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, eventChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in EventSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					var event Event
					if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
						log.Printf("invalid gallery event payload: %v", err)
						return
					}
					onEvent(event)
				}()
			}
		}
	}()

	return nil
}

// Bus is the mutation-side entry point for live updates. With Redis
// available every event round-trips through pub/sub so peer instances
// see it too; without Redis it goes straight to the local hub.
type Bus struct {
	hub      *Hub
	notifier *Notifier
	viaRedis bool
}

// NewBus wires the hub and notifier together. Pass a nil redis client
// for local-only delivery.
func NewBus(ctx context.Context, hub *Hub, rdb *redis.Client) (*Bus, error) {
	notifier := NewNotifier(rdb)
	viaRedis := rdb != nil
	if viaRedis {
		if err := hub.StartWiring(ctx, notifier); err != nil {
			return nil, err
		}
	}
	return &Bus{hub: hub, notifier: notifier, viaRedis: viaRedis}, nil
}

// Publish delivers an event to all subscribed clients, across
// instances when Redis is present.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil || b.hub == nil {
		return
	}
	if b.viaRedis {
		if err := b.notifier.PublishEvent(ctx, event); err == nil {
			return
		}
		// Redis publish failed; at least reach local clients.
	}
	b.hub.Broadcast(event)
}
