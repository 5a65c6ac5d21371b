package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "tradehost:session:"

// SessionStore implements SessionStore using Redis
type SessionStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewSessionStore creates a new Redis session store. A zero ttl keeps
// records until they are deleted.
func NewSessionStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save persists a session record
func (s *SessionStore) Save(ctx context.Context, record ports.SessionRecord) error {
	if record.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := s.client.Set(ctx, getSessionKey(record.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}

	s.logger.Debug("session record saved",
		zap.String("session_id", record.SessionID),
		zap.String("session", record.Info.Name))

	return nil
}

// Get retrieves a session record
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*ports.SessionRecord, error) {
	data, err := s.client.Get(ctx, getSessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ports.ErrRecordNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}

	var record ports.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}

	return &record, nil
}

// Delete removes a session record
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, getSessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}

	s.logger.Debug("session record deleted",
		zap.String("session_id", sessionID))

	return nil
}

// List returns every stored record ordered by creation time
func (s *SessionStore) List(ctx context.Context) ([]ports.SessionRecord, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return []ports.SessionRecord{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session records: %w", err)
	}

	records := make([]ports.SessionRecord, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}

		var record ports.SessionRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Warn("skipping unreadable session record",
				zap.String("key", keys[i]),
				zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

// getSessionKey returns the Redis key for a session record
func getSessionKey(sessionID string) string {
	return keyPrefix + sessionID
}
