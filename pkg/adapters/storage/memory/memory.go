package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/tradehost/pkg/ports"
)

// InMemorySessionStore implements SessionStore using an in-memory map
type InMemorySessionStore struct {
	records map[string]ports.SessionRecord
	mu      sync.RWMutex
}

// NewInMemorySessionStore creates a new in-memory session store
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		records: make(map[string]ports.SessionRecord),
	}
}

// Save stores or replaces a session record
func (s *InMemorySessionStore) Save(ctx context.Context, record ports.SessionRecord) error {
	if record.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.SessionID] = record
	return nil
}

// Get retrieves a session record
func (s *InMemorySessionStore) Get(ctx context.Context, sessionID string) (*ports.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrRecordNotFound, sessionID)
	}
	return &record, nil
}

// Delete removes a session record. Missing records are ignored.
func (s *InMemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, sessionID)
	return nil
}

// List returns every record ordered by creation time
func (s *InMemorySessionStore) List(ctx context.Context) ([]ports.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]ports.SessionRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sortRecords(records)
	return records, nil
}

func sortRecords(records []ports.SessionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].SessionID < records[j].SessionID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
