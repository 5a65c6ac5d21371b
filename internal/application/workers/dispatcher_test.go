package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	metrics "github.com/aescanero/tradehost/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

type recorder struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (r *recorder) handle(_ context.Context, msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) snapshot() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func TestDispatcherPreservesOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(16, rec.handle, newCollector(), zaptest.NewLogger(t))
	d.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Enqueue(domain.SourceUpdated{
			Source: domain.NodeAddress(string(rune('a' + i))),
			Role:   domain.SourceRoleDataProvider,
			Added:  i%2 == 0,
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	got := rec.snapshot()
	require.Len(t, got, 10)
	for i, msg := range got {
		assert.Equal(t, domain.NodeAddress(string(rune('a'+i))), msg.(domain.SourceUpdated).Source)
	}
}

func TestDispatcherKeepsBacklogBeyondThreshold(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(2, rec.handle, newCollector(), zaptest.NewLogger(t))

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Enqueue(domain.SourceUpdated{
			Source: domain.NodeAddress(fmt.Sprintf("feed-%02d", i)),
			Role:   domain.SourceRoleDataProvider,
			Added:  true,
		}))
	}
	assert.Equal(t, 50, d.Depth())

	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))

	got := rec.snapshot()
	require.Len(t, got, 50)
	for i, msg := range got {
		assert.Equal(t, domain.NodeAddress(fmt.Sprintf("feed-%02d", i)), msg.(domain.SourceUpdated).Source)
	}
	assert.Zero(t, d.Depth())
}

func TestDispatcherWakesForLateNotifications(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(4, rec.handle, newCollector(), zaptest.NewLogger(t))
	d.Start()
	defer func() { _ = d.Shutdown(context.Background()) }()

	require.NoError(t, d.Enqueue(domain.SubscriptionTerminated{}))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Enqueue(domain.SubscriptionTerminated{}))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(4, func(context.Context, domain.Message) {}, newCollector(), zaptest.NewLogger(t))
	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()))

	assert.ErrorIs(t, d.Enqueue(domain.SubscriptionTerminated{}), ErrQueueClosed)
	assert.True(t, d.Closed())
}

func TestDispatcherSurvivesHandlerPanic(t *testing.T) {
	rec := &recorder{}
	handler := func(ctx context.Context, msg domain.Message) {
		if _, ok := msg.(domain.SubscriptionTerminated); ok {
			panic("boom")
		}
		rec.handle(ctx, msg)
	}
	d := NewDispatcher(4, handler, newCollector(), zaptest.NewLogger(t))
	d.Start()

	require.NoError(t, d.Enqueue(domain.SubscriptionTerminated{}))
	require.NoError(t, d.Enqueue(domain.SourceUpdated{Source: "feed", Role: domain.SourceRoleDataProvider, Added: true}))
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Len(t, rec.snapshot(), 1)
}

func TestDispatcherShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	handler := func(ctx context.Context, msg domain.Message) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	d := NewDispatcher(4, handler, newCollector(), zaptest.NewLogger(t))
	d.Start()
	require.NoError(t, d.Enqueue(domain.SubscriptionTerminated{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Shutdown(ctx))
	close(release)
}
