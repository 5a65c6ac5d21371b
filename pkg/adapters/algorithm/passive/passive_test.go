package passive

import (
	"context"
	"testing"

	"github.com/aescanero/tradehost/internal/application/session"
	"github.com/aescanero/tradehost/pkg/adapters/providers/simulated"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	_ ports.Algorithm  = (*Algorithm)(nil)
	_ session.Listener = (*Algorithm)(nil)
)

type stubHost struct{}

func (stubHost) BusName() string   { return "host-a" }
func (stubHost) IsConnected() bool { return true }
func (stubHost) SessionCount() int { return 0 }

func newSession(t *testing.T, a *Algorithm, name string) (*session.ExpertSession, *simulated.DataProvider) {
	t.Helper()
	info := domain.SessionInfo{Name: name, Symbol: domain.Symbol{Name: "EURUSD"}}
	data := simulated.NewDataProvider("feed")
	require.NoError(t, data.Initialize(context.Background(), info, domain.RoutingPath{}))
	return session.New(info, session.WithListener(a)), data
}

func TestCapacity(t *testing.T) {
	ctx := context.Background()
	a := New(stubHost{}, "host-a", 1, zaptest.NewLogger(t))
	require.NoError(t, a.Initialize(ctx))
	assert.Error(t, a.Initialize(ctx))
	assert.Equal(t, "passive@host-a", a.Name())

	first, data := newSession(t, a, "one")
	require.NoError(t, first.Initialize(ctx, data, nil))
	assert.Equal(t, 1, a.Attached())

	second, data2 := newSession(t, a, "two")
	err := second.Initialize(ctx, data2, nil)
	assert.ErrorIs(t, err, session.ErrSessionRejected)
	assert.ErrorIs(t, err, ErrCapacityReached)

	first.UnInitialize(ctx)
	assert.Zero(t, a.Attached())

	third, data3 := newSession(t, a, "three")
	require.NoError(t, third.Initialize(ctx, data3, nil))
}

func TestRejectsWhenNotInitialized(t *testing.T) {
	a := New(stubHost{}, "host-a", 0, zaptest.NewLogger(t))
	s, data := newSession(t, a, "one")
	assert.ErrorIs(t, s.Initialize(context.Background(), data, nil), session.ErrSessionRejected)
}
