package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const streamPrefix = "tradehost:events:"

// StreamsEventBus implements EventBus using Redis Streams. Every
// subscription reads the stream on its own cursor, so each subscriber
// receives every event published after it subscribed.
type StreamsEventBus struct {
	client *redis.Client
	logger *zap.Logger
	maxLen int64

	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]context.CancelFunc
}

// NewStreamsEventBus creates a new Redis Streams event bus. Streams are
// trimmed to roughly maxLen entries; zero disables trimming.
func NewStreamsEventBus(client *redis.Client, maxLen int64, logger *zap.Logger) (*StreamsEventBus, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	return &StreamsEventBus{
		client: client,
		logger: logger,
		maxLen: maxLen,
		subs:   make(map[string]map[uint64]context.CancelFunc),
	}, nil
}

// Publish publishes an event to the appropriate stream topic
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	streamKey := getStreamKey(topic)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"type": string(event.Type),
			"data": string(data),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("topic", topic),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is done.
// Delivery starts with the first event published after Subscribe returns.
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)

	lastID, err := e.lastEntryID(ctx, streamKey)
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	if e.subs[topic] == nil {
		e.subs[topic] = make(map[uint64]context.CancelFunc)
	}
	e.subs[topic][id] = cancel
	e.mu.Unlock()

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("from_id", lastID))

	go func() {
		defer e.forget(topic, id)
		e.readStream(subCtx, streamKey, lastID, handler)
	}()

	return nil
}

// lastEntryID returns the ID of the newest entry of the stream, or "0-0"
// when the stream is empty or does not exist yet
func (e *StreamsEventBus) lastEntryID(ctx context.Context, streamKey string) (string, error) {
	entries, err := e.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read stream position: %w", err)
	}
	if len(entries) == 0 {
		return "0-0", nil
	}
	return entries[0].ID, nil
}

// readStream reads events from a stream after lastID
func (e *StreamsEventBus) readStream(ctx context.Context, streamKey, lastID string, handler ports.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := e.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Count:   10,
			Block:   time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				e.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

// processMessage processes a single message from the stream
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		return
	}

	var event domain.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

// Unsubscribe stops every subscription on topic
func (e *StreamsEventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	subs := e.subs[topic]
	delete(e.subs, topic)
	e.mu.Unlock()

	for _, cancel := range subs {
		cancel()
	}
	return nil
}

// SubscriberCount returns the number of active subscriptions on topic
func (e *StreamsEventBus) SubscriberCount(topic string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs[topic])
}

// Close stops every subscription. The Redis client is closed by its owner.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	subs := e.subs
	e.subs = make(map[string]map[uint64]context.CancelFunc)
	e.mu.Unlock()

	for _, topicSubs := range subs {
		for _, cancel := range topicSubs {
			cancel()
		}
	}
	return nil
}

func (e *StreamsEventBus) forget(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cancel, ok := e.subs[topic][id]; ok {
		cancel()
		delete(e.subs[topic], id)
		if len(e.subs[topic]) == 0 {
			delete(e.subs, topic)
		}
	}
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return streamPrefix + topic
}
