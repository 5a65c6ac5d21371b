package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventsmemory "github.com/aescanero/tradehost/pkg/adapters/events/memory"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const topic = "host.events"

func newStream(t *testing.T, query string) (*eventsmemory.InMemoryEventBus, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	bus := eventsmemory.NewInMemoryEventBus(logger)
	router := gin.New()
	router.GET("/api/v1/events/ws", NewHandler(bus, topic, logger).HandleEventStream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(topic) == 1
	}, time.Second, 5*time.Millisecond)

	return bus, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.Event
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestHandleEventStream(t *testing.T) {
	bus, conn := newStream(t, "")

	require.NoError(t, bus.Publish(context.Background(), topic, domain.Event{
		ID:   "e1",
		Type: domain.EventTypeSourcesChanged,
		Host: "TestHostA",
		Data: map[string]interface{}{"data_sources": float64(1)},
	}))

	event := readEvent(t, conn)
	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, domain.EventTypeSourcesChanged, event.Type)
	assert.Equal(t, "TestHostA", event.Host)
	assert.Equal(t, float64(1), event.Data["data_sources"])
}

func TestHandleEventStream_Filter(t *testing.T) {
	bus, conn := newStream(t, "?type=sessions.changed")

	require.NoError(t, bus.Publish(context.Background(), topic, domain.Event{ID: "skip", Type: domain.EventTypeSourcesChanged}))
	require.NoError(t, bus.Publish(context.Background(), topic, domain.Event{ID: "keep", Type: domain.EventTypeSessionsChanged}))

	event := readEvent(t, conn)
	assert.Equal(t, "keep", event.ID)
}

func TestHandleEventStream_ClientCloseUnsubscribes(t *testing.T) {
	bus, conn := newStream(t, "")

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return bus.SubscriberCount(topic) == 0
	}, time.Second, 5*time.Millisecond)
}
