package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/google/uuid"
)

var (
	ErrInvalidState        = errors.New("session is not in the expected state")
	ErrDataProviderMissing = errors.New("session requires a data provider")
	ErrProviderNotReady    = errors.New("provider is not initialized")
	ErrSessionRejected     = errors.New("session rejected by listener")
)

// State is the lifecycle state of a session
type State string

const (
	StateCreated     State = "created"
	StateInitialized State = "initialized"
	StateTornDown    State = "torn_down"
)

// Listener is notified when sessions attach to and detach from the host.
// Algorithms implement it to accept or refuse sessions.
type Listener interface {
	SessionInitializing(ctx context.Context, s *ExpertSession) error
	SessionUnInitialized(ctx context.Context, s *ExpertSession)
}

// ExpertSession binds a data provider, an optional execution provider and a
// session descriptor. Provider references are non-owning.
type ExpertSession struct {
	id        string
	info      domain.SessionInfo
	createdAt time.Time
	simulated bool
	listener  Listener

	mu        sync.RWMutex
	state     State
	data      ports.DataProvider
	execution ports.OrderExecutionProvider
}

// Option configures a session
type Option func(*ExpertSession)

// WithListener attaches a lifecycle listener
func WithListener(l Listener) Option {
	return func(s *ExpertSession) {
		s.listener = l
	}
}

// WithSimulated marks the session as driven by simulated providers
func WithSimulated() Option {
	return func(s *ExpertSession) {
		s.simulated = true
	}
}

// New creates a session in the Created state
func New(info domain.SessionInfo, opts ...Option) *ExpertSession {
	s := &ExpertSession{
		id:        uuid.New().String(),
		info:      info,
		createdAt: time.Now(),
		state:     StateCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier
func (s *ExpertSession) ID() string {
	return s.id
}

// Info returns the session descriptor
func (s *ExpertSession) Info() domain.SessionInfo {
	return s.info
}

// CreatedAt returns when the session was constructed
func (s *ExpertSession) CreatedAt() time.Time {
	return s.createdAt
}

// Simulated reports whether the session runs on simulated providers
func (s *ExpertSession) Simulated() bool {
	return s.simulated
}

// State returns the current lifecycle state
func (s *ExpertSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// DataProvider returns the bound data provider, nil before Initialize
func (s *ExpertSession) DataProvider() ports.DataProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// OrderExecutionProvider returns the bound execution provider, if any
func (s *ExpertSession) OrderExecutionProvider() ports.OrderExecutionProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.execution
}

// Initialize binds the providers and moves the session to Initialized.
// On failure the session stays in Created and keeps no provider references.
func (s *ExpertSession) Initialize(ctx context.Context, data ports.DataProvider, execution ports.OrderExecutionProvider) error {
	s.mu.Lock()
	if s.state != StateCreated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: initialize from %s", ErrInvalidState, state)
	}
	s.mu.Unlock()

	if data == nil {
		return ErrDataProviderMissing
	}
	if !data.IsInitialized() {
		return fmt.Errorf("data provider %s: %w", data.Source(), ErrProviderNotReady)
	}
	if execution != nil && !execution.IsInitialized() {
		return fmt.Errorf("execution provider %s: %w", execution.Source(), ErrProviderNotReady)
	}

	if s.listener != nil {
		if err := s.listener.SessionInitializing(ctx, s); err != nil {
			return fmt.Errorf("%w: %w", ErrSessionRejected, err)
		}
	}

	s.mu.Lock()
	s.data = data
	s.execution = execution
	s.state = StateInitialized
	s.mu.Unlock()

	return nil
}

// UnInitialize tears the session down. Calling it again is a no-op.
func (s *ExpertSession) UnInitialize(ctx context.Context) {
	s.mu.Lock()
	wasInitialized := s.state == StateInitialized
	if s.state == StateTornDown {
		s.mu.Unlock()
		return
	}
	s.state = StateTornDown
	s.mu.Unlock()

	if wasInitialized && s.listener != nil {
		s.listener.SessionUnInitialized(ctx, s)
	}
}
