package events

import (
	"context"
	"encoding/json"
	"sync"

	"notesync/pkg/logger"
)

const (
	ItemCreated = "item.created"
	ItemDeleted = "item.deleted"
	CardCreated = "card.created"
	CardDeleted = "card.deleted"
)

// Event is a notification addressed to one actor's views.
type Event struct {
	Type    string          `json:"type"`
	ActorID string          `json:"actor_id"`
	Payload json.RawMessage `json:"payload"`
}

// Bus replaces shared refresh callbacks: producers publish, list views
// subscribe.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe delivers events until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) <-chan Event
}

const subscriberBuffer = 64

// LocalBus fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event.
type LocalBus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[chan Event]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Sugar.Warnf("Event subscriber buffer full, dropping %s for %s", ev.Type, ev.ActorID)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}
