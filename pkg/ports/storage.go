package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
)

// ErrRecordNotFound is returned when a session record does not exist
var ErrRecordNotFound = errors.New("session record not found")

// SessionRecord is the journal entry for a live session
type SessionRecord struct {
	SessionID       string             `json:"session_id"`
	Host            string             `json:"host"`
	Info            domain.SessionInfo `json:"info"`
	DataSource      domain.NodeAddress `json:"data_source"`
	ExecutionSource domain.NodeAddress `json:"execution_source,omitempty"`
	Simulated       bool               `json:"simulated"`
	CreatedAt       time.Time          `json:"created_at"`
}

// SessionStore persists the journal of live sessions
type SessionStore interface {
	Save(ctx context.Context, record SessionRecord) error
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]SessionRecord, error)
}
