package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ ports.EventBus = (*StreamsEventBus)(nil)

func newBus(t *testing.T) (*StreamsEventBus, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus, err := NewStreamsEventBus(client, 100, zaptest.NewLogger(t))
	require.NoError(t, err)
	return bus, client
}

func TestNewStreamsEventBusRequiresClient(t *testing.T) {
	_, err := NewStreamsEventBus(nil, 0, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestPublishAppendsToStream(t *testing.T) {
	bus, client := newBus(t)
	ctx := context.Background()

	event := domain.Event{ID: "e1", Type: domain.EventTypeSourcesChanged, Host: "host-a", Timestamp: time.Now().UTC()}
	require.NoError(t, bus.Publish(ctx, "host.events", event))

	entries, err := client.XRange(ctx, "tradehost:events:host.events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sources.changed", entries[0].Values["type"])
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	bus, _ := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.Event, 1)
	require.NoError(t, bus.Subscribe(ctx, "host.events", func(_ context.Context, e domain.Event) error {
		got <- e
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "host.events", domain.Event{ID: "e2", Type: domain.EventTypeSessionsChanged}))

	select {
	case e := <-got:
		assert.Equal(t, "e2", e.ID)
		assert.Equal(t, domain.EventTypeSessionsChanged, e.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("event not received")
	}
}

func TestEverySubscriberReceivesEveryEvent(t *testing.T) {
	bus, _ := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const published = 20
	var mu sync.Mutex
	counts := map[string]int{}
	observer := func(name string) ports.EventHandler {
		return func(context.Context, domain.Event) error {
			mu.Lock()
			defer mu.Unlock()
			counts[name]++
			return nil
		}
	}
	require.NoError(t, bus.Subscribe(ctx, "host.events", observer("a")))
	require.NoError(t, bus.Subscribe(ctx, "host.events", observer("b")))
	assert.Equal(t, 2, bus.SubscriberCount("host.events"))

	for i := 0; i < published; i++ {
		require.NoError(t, bus.Publish(ctx, "host.events", domain.Event{
			ID:   fmt.Sprintf("e%d", i),
			Type: domain.EventTypeSourcesChanged,
		}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["a"] == published && counts["b"] == published
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubscribeSkipsEarlierEvents(t *testing.T) {
	bus, _ := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Publish(ctx, "host.events", domain.Event{ID: "old", Type: domain.EventTypeSourcesChanged}))

	got := make(chan domain.Event, 4)
	require.NoError(t, bus.Subscribe(ctx, "host.events", func(_ context.Context, e domain.Event) error {
		got <- e
		return nil
	}))
	require.NoError(t, bus.Publish(ctx, "host.events", domain.Event{ID: "new", Type: domain.EventTypeSourcesChanged}))

	select {
	case e := <-got:
		assert.Equal(t, "new", e.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("event not received")
	}
}

func TestUnsubscribeStopsSubscriptions(t *testing.T) {
	bus, _ := newBus(t)
	ctx := context.Background()

	noop := func(context.Context, domain.Event) error { return nil }
	require.NoError(t, bus.Subscribe(ctx, "host.events", noop))
	require.NoError(t, bus.Subscribe(ctx, "host.events", noop))
	require.NoError(t, bus.Unsubscribe(ctx, "host.events"))
	assert.Zero(t, bus.SubscriberCount("host.events"))

	require.NoError(t, bus.Subscribe(ctx, "other", noop))
	require.NoError(t, bus.Close())
	assert.Zero(t, bus.SubscriberCount("other"))
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus, _ := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, bus.Subscribe(ctx, "host.events", func(context.Context, domain.Event) error { return nil }))
	cancel()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount("host.events") == 0
	}, 3*time.Second, 10*time.Millisecond)
}
