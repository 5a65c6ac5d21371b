package remote

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/tradehost/pkg/adapters/bus/memory"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ ports.ProviderFactory = (*Factory)(nil)

func setup(t *testing.T, sources ...memory.Source) (*memory.Platform, *Factory) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	network := memory.NewNetwork(logger)
	platform := memory.NewPlatform(network, "platform", logger)
	for _, s := range sources {
		platform.AddSource(context.Background(), s)
	}
	return platform, NewFactory(network.Connect("host"), 50*time.Millisecond, logger)
}

func pathTo(t *testing.T, addr domain.NodeAddress) domain.RoutingPath {
	t.Helper()
	path, err := domain.NewRoutingPath("platform", "").WithDestination(addr)
	require.NoError(t, err)
	return path
}

func TestDataProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	platform, factory := setup(t, memory.Source{Address: "feed", Role: domain.SourceRoleDataProvider})
	info := domain.SessionInfo{Name: "eurusd"}

	p := factory.NewDataProvider("feed")
	assert.True(t, p.OwnsRegistration())
	assert.Equal(t, domain.NodeAddress("feed"), p.Source())

	require.NoError(t, p.Initialize(ctx, info, pathTo(t, "feed")))
	assert.True(t, p.IsInitialized())
	assert.Equal(t, 1, platform.Bindings("feed"))

	got, ok := p.DataSession()
	assert.True(t, ok)
	assert.Equal(t, "eurusd", got.Name)

	require.NoError(t, p.UnInitialize(ctx))
	require.NoError(t, p.UnInitialize(ctx))
	assert.False(t, p.IsInitialized())
	assert.Zero(t, platform.Bindings("feed"))
}

func TestInitializeFailuresLeaveProviderUninitialized(t *testing.T) {
	ctx := context.Background()
	_, factory := setup(t,
		memory.Source{Address: "rejecting", Role: domain.SourceRoleOrderExecutioner, Reject: true},
		memory.Source{Address: "silent", Role: domain.SourceRoleOrderExecutioner, Silent: true},
		memory.Source{Address: "feed", Role: domain.SourceRoleDataProvider},
	)

	tests := []struct {
		name    string
		source  domain.NodeAddress
		wantErr error
	}{
		{name: "rejected", source: "rejecting", wantErr: domain.ErrOperationFailed},
		{name: "timeout", source: "silent", wantErr: domain.ErrNoReply},
		{name: "wrong role", source: "feed", wantErr: domain.ErrOperationFailed},
		{name: "unknown source", source: "ghost", wantErr: domain.ErrNoReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := factory.NewOrderExecutionProvider(tt.source)
			err := p.Initialize(ctx, domain.SessionInfo{Name: "s"}, pathTo(t, tt.source))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, p.IsInitialized())
			_, ok := p.ExecutionSession()
			assert.False(t, ok)
			assert.NoError(t, p.UnInitialize(ctx))
		})
	}
}

func TestParticipantIDsAreUnique(t *testing.T) {
	_, factory := setup(t)
	a := factory.NewDataProvider("feed")
	b := factory.NewDataProvider("feed")
	assert.NotEqual(t, a.ParticipantID(), b.ParticipantID())
}
