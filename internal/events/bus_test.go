package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := bus.Subscribe(ctx)
	second := bus.Subscribe(ctx)

	ev := Event{Type: ItemCreated, ActorID: "user-1", Payload: json.RawMessage(`{"id":"item-1"}`)}
	require.NoError(t, bus.Publish(context.Background(), ev))

	assert.Equal(t, ev, receive(t, first))
	assert.Equal(t, ev, receive(t, second))
}

func TestLocalBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch := bus.Subscribe(ctx)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// Publishing after the subscriber left must not panic on a closed channel.
	assert.NoError(t, bus.Publish(context.Background(), Event{Type: ItemDeleted, ActorID: "user-1"}))
}

func setupRedisBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	bus := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "")
	t.Cleanup(func() { bus.Close() })
	return bus, mr
}

func TestRedisBus(t *testing.T) {
	bus, _ := setupRedisBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Ping(ctx))

	ch := bus.Subscribe(ctx)
	ev := Event{Type: ItemCreated, ActorID: "user-1", Payload: json.RawMessage(`{"id":"item-1"}`)}
	require.NoError(t, bus.Publish(ctx, ev))

	got := receive(t, ch)
	assert.Equal(t, ItemCreated, got.Type)
	assert.Equal(t, "user-1", got.ActorID)
	assert.JSONEq(t, `{"id":"item-1"}`, string(got.Payload))
}

func TestRedisBus_PublishUsesChannel(t *testing.T) {
	bus, mr := setupRedisBus(t)
	ctx := context.Background()

	sub := mr.NewSubscriber()
	defer sub.Close()
	sub.Subscribe(DefaultChannel)

	require.NoError(t, bus.Publish(ctx, Event{Type: ItemDeleted, ActorID: "user-9"}))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, DefaultChannel, msg.Channel)
		assert.Contains(t, msg.Message, `"item.deleted"`)
	case <-time.After(time.Second):
		t.Fatal("no message on redis channel")
	}
}
