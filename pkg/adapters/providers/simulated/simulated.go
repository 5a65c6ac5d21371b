package simulated

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/tradehost/pkg/domain"
	"go.uber.org/zap"
)

// ErrSessionMismatch is returned when an initialized provider is asked to
// serve a different session.
var ErrSessionMismatch = errors.New("simulated provider already bound to another session")

// Option configures a simulated provider
type Option func(*base)

// WithHostRegistration makes the host register the provider on the bus
func WithHostRegistration() Option {
	return func(b *base) {
		b.hostRegistration = true
	}
}

// WithLogger sets the provider logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// base holds the state shared by both simulated roles
type base struct {
	id               string
	source           domain.NodeAddress
	hostRegistration bool
	logger           *zap.Logger

	mu          sync.RWMutex
	initialized bool
	info        domain.SessionInfo
	received    []domain.Message
}

func (b *base) setup(id string, source domain.NodeAddress, opts []Option) {
	b.id = id
	b.source = source
	b.logger = zap.NewNop()
	for _, opt := range opts {
		opt(b)
	}
}

// ParticipantID returns the provider bus identity
func (b *base) ParticipantID() string {
	return b.id
}

// HandleMessage records messages delivered to the provider
func (b *base) HandleMessage(ctx context.Context, msg domain.Message) {
	b.mu.Lock()
	b.received = append(b.received, msg)
	b.mu.Unlock()

	b.logger.Debug("simulated provider received message",
		zap.String("provider", b.id),
		zap.String("type", msg.MessageType()))
}

// Received returns a copy of the messages delivered so far
func (b *base) Received() []domain.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Message, len(b.received))
	copy(out, b.received)
	return out
}

// Initialize binds the session. Re-initializing with the same session is a
// no-op, which lets callers initialize before handing the provider over.
func (b *base) Initialize(ctx context.Context, info domain.SessionInfo, _ domain.RoutingPath) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		if b.info.Equal(info) {
			return nil
		}
		return ErrSessionMismatch
	}

	b.info = info
	b.initialized = true

	b.logger.Debug("simulated provider initialized",
		zap.String("provider", b.id),
		zap.String("session", info.Name))
	return nil
}

// UnInitialize releases the session binding
func (b *base) UnInitialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.initialized = false
	return nil
}

// IsInitialized reports whether a session is bound
func (b *base) IsInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// Source returns the simulated source address
func (b *base) Source() domain.NodeAddress {
	return b.source
}

// OwnsRegistration reports whether the host registers the provider
func (b *base) OwnsRegistration() bool {
	return b.hostRegistration
}

func (b *base) session() (domain.SessionInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info, b.initialized
}

// DataProvider is a locally driven data provider
type DataProvider struct {
	base
}

// NewDataProvider creates a simulated data provider for source
func NewDataProvider(source domain.NodeAddress, opts ...Option) *DataProvider {
	p := &DataProvider{}
	p.setup("sim-data-"+source.String(), source, opts)
	return p
}

// DataSession returns the bound session
func (p *DataProvider) DataSession() (domain.SessionInfo, bool) {
	return p.session()
}

// OrderExecutionProvider is a locally driven order execution provider
type OrderExecutionProvider struct {
	base
}

// NewOrderExecutionProvider creates a simulated execution provider for source
func NewOrderExecutionProvider(source domain.NodeAddress, opts ...Option) *OrderExecutionProvider {
	p := &OrderExecutionProvider{}
	p.setup("sim-exec-"+source.String(), source, opts)
	return p
}

// ExecutionSession returns the bound session
func (p *OrderExecutionProvider) ExecutionSession() (domain.SessionInfo, bool) {
	return p.session()
}
