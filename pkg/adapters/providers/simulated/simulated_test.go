package simulated

import (
	"context"
	"testing"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.DataProvider           = (*DataProvider)(nil)
	_ ports.OrderExecutionProvider = (*OrderExecutionProvider)(nil)
)

func TestDataProviderInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := NewDataProvider("sim-feed")
	info := domain.SessionInfo{Name: "s1", Symbol: domain.Symbol{Name: "EURUSD"}}

	require.NoError(t, p.Initialize(ctx, info, domain.RoutingPath{}))
	require.NoError(t, p.Initialize(ctx, info, domain.RoutingPath{}))
	assert.True(t, p.IsInitialized())

	got, ok := p.DataSession()
	assert.True(t, ok)
	assert.True(t, got.Equal(info))

	other := info
	other.Name = "s2"
	assert.ErrorIs(t, p.Initialize(ctx, other, domain.RoutingPath{}), ErrSessionMismatch)

	require.NoError(t, p.UnInitialize(ctx))
	require.NoError(t, p.UnInitialize(ctx))
	assert.False(t, p.IsInitialized())
}

func TestOwnsRegistration(t *testing.T) {
	assert.False(t, NewOrderExecutionProvider("sim-broker").OwnsRegistration())
	assert.True(t, NewOrderExecutionProvider("sim-broker", WithHostRegistration()).OwnsRegistration())
}

func TestHandleMessageRecords(t *testing.T) {
	p := NewOrderExecutionProvider("sim-broker")
	p.HandleMessage(context.Background(), domain.SubscriptionTerminated{})

	assert.Equal(t, "sim-exec-sim-broker", p.ParticipantID())
	assert.Len(t, p.Received(), 1)
}
