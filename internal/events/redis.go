package events

import (
	"context"
	"encoding/json"
	"fmt"

	"notesync/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the redis channel shared by every server instance.
const DefaultChannel = "notesync:events"

// RedisBus carries events across server instances over redis pub/sub.
type RedisBus struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBus(opts *redis.Options, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{rdb: redis.NewClient(opts), channel: channel}
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) <-chan Event {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	out := make(chan Event, subscriberBuffer)

	// Wait for the subscription confirmation so events published after
	// Subscribe returns are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Sugar.Errorf("Failed to subscribe to %s: %v", b.channel, err)
		pubsub.Close()
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Sugar.Errorf("Error unmarshalling event from %s: %v", b.channel, err)
					continue
				}
				select {
				case out <- ev:
				default:
					logger.Sugar.Warnf("Event subscriber buffer full, dropping %s for %s", ev.Type, ev.ActorID)
				}
			}
		}
	}()
	return out
}
