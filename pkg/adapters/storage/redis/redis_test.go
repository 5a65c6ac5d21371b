package redis

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ ports.SessionStore = (*SessionStore)(nil)

func newStore(t *testing.T, ttl time.Duration) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, ttl, zaptest.NewLogger(t)), mr
}

func record(id string, createdAt time.Time) ports.SessionRecord {
	return ports.SessionRecord{
		SessionID:  id,
		Host:       "host-a",
		DataSource: "feed",
		Info: domain.SessionInfo{
			Name:    "eurusd-" + id,
			Symbol:  domain.Symbol{Name: "EURUSD", Group: "fx"},
			LotSize: decimal.RequireFromString("0.01"),
		},
		CreatedAt: createdAt.UTC(),
	}
}

func TestSaveGetDelete(t *testing.T) {
	store, _ := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("a", time.Now())))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "eurusd-a", got.Info.Name)
	assert.True(t, got.Info.LotSize.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, domain.NodeAddress("feed"), got.DataSource)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ports.ErrRecordNotFound)
}

func TestListOrdersByCreation(t *testing.T) {
	store, _ := newStore(t, 0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, record("late", now.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, record("early", now)))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].SessionID)
	assert.Equal(t, "late", list[1].SessionID)
}

func TestListEmpty(t *testing.T) {
	store, _ := newStore(t, 0)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordsExpire(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("a", time.Now())))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ports.ErrRecordNotFound)
}
