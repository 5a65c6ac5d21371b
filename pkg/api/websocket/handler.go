package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 5 * time.Second
	bufferSize   = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler streams host events to WebSocket clients
type Handler struct {
	eventBus ports.EventBus
	topic    string
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler relaying events published on topic
func NewHandler(eventBus ports.EventBus, topic string, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		topic:    topic,
		logger:   logger,
	}
}

// HandleEventStream streams host events. The optional "type" query
// parameter restricts the stream to one event type.
func (h *Handler) HandleEventStream(c *gin.Context) {
	filter := domain.EventType(c.Query("type"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("client", c.ClientIP()),
		zap.String("filter", string(filter)))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The subscription lives as long as ctx
	eventChan := make(chan domain.Event, bufferSize)
	if err := h.eventBus.Subscribe(ctx, h.topic, h.forward(eventChan)); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("topic", h.topic),
			zap.Error(err))
		return
	}

	// Reader detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			if filter != "" && event.Type != filter {
				continue
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("failed to write message", zap.Error(err))
				return
			}
		}
	}
}

// forward hands events to the connection loop without blocking the bus
func (h *Handler) forward(ch chan<- domain.Event) ports.EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}
}
