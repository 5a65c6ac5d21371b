package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// binding builds the subscribe and unsubscribe messages of one role
type binding struct {
	role        domain.SourceRole
	subscribe   func(domain.SessionInfo) domain.Message
	unsubscribe func(domain.SessionInfo) domain.Message
}

// provider is the bus proxy shared by both roles
type provider struct {
	id      string
	source  domain.NodeAddress
	bus     ports.Bus
	timeout time.Duration
	binding binding
	logger  *zap.Logger

	mu          sync.RWMutex
	initialized bool
	info        domain.SessionInfo
	path        domain.RoutingPath
}

func newProvider(source domain.NodeAddress, bus ports.Bus, timeout time.Duration, b binding, logger *zap.Logger) provider {
	if timeout <= 0 {
		timeout = ports.DefaultRequestTimeout
	}
	return provider{
		id:      fmt.Sprintf("%s-%s-%s", b.role, source, uuid.New().String()[:8]),
		source:  source,
		bus:     bus,
		timeout: timeout,
		binding: b,
		logger:  logger,
	}
}

// ParticipantID returns the provider bus identity
func (p *provider) ParticipantID() string {
	return p.id
}

// HandleMessage receives traffic from the source once the session is bound
func (p *provider) HandleMessage(ctx context.Context, msg domain.Message) {
	p.logger.Debug("provider received message",
		zap.String("provider", p.id),
		zap.String("source", p.source.String()),
		zap.String("type", msg.MessageType()))
}

// Initialize subscribes the session on the source and waits for its answer.
// Any failure leaves the provider uninitialized.
func (p *provider) Initialize(ctx context.Context, info domain.SessionInfo, path domain.RoutingPath) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("provider %s already initialized", p.id)
	}

	result, err := ports.RequestReply[domain.OperationResult](ctx, p.bus, path, p.binding.subscribe(info), p.timeout)
	if err != nil {
		return fmt.Errorf("failed to subscribe session %s on %s: %w", info.Name, p.source, err)
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to subscribe session %s on %s: %w", info.Name, p.source, err)
	}

	p.info = info
	p.path = path.Clone()
	p.initialized = true

	p.logger.Info("provider initialized",
		zap.String("provider", p.id),
		zap.String("role", p.binding.role.String()),
		zap.String("source", p.source.String()),
		zap.String("session", info.Name))
	return nil
}

// UnInitialize sends a one-way unsubscribe if a session is bound
func (p *provider) UnInitialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}
	p.initialized = false

	if err := p.bus.Send(ctx, p.path, p.binding.unsubscribe(p.info)); err != nil {
		p.logger.Warn("failed to unsubscribe session",
			zap.String("provider", p.id),
			zap.String("source", p.source.String()),
			zap.Error(err))
		return fmt.Errorf("failed to unsubscribe session %s on %s: %w", p.info.Name, p.source, err)
	}
	return nil
}

// IsInitialized reports whether a session is bound
func (p *provider) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// Source returns the source address
func (p *provider) Source() domain.NodeAddress {
	return p.source
}

// OwnsRegistration is always true: the host registers remote providers
func (p *provider) OwnsRegistration() bool {
	return true
}

func (p *provider) session() (domain.SessionInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info, p.initialized
}

// DataProvider proxies a remote market data source
type DataProvider struct {
	provider
}

// NewDataProvider creates a data provider for source
func NewDataProvider(source domain.NodeAddress, bus ports.Bus, timeout time.Duration, logger *zap.Logger) *DataProvider {
	return &DataProvider{provider: newProvider(source, bus, timeout, binding{
		role:        domain.SourceRoleDataProvider,
		subscribe:   func(info domain.SessionInfo) domain.Message { return domain.SubscribeToData{Session: info} },
		unsubscribe: func(info domain.SessionInfo) domain.Message { return domain.UnsubscribeFromData{Session: info} },
	}, logger)}
}

// DataSession returns the bound session
func (p *DataProvider) DataSession() (domain.SessionInfo, bool) {
	return p.session()
}

// OrderExecutionProvider proxies a remote order execution source
type OrderExecutionProvider struct {
	provider
}

// NewOrderExecutionProvider creates an execution provider for source
func NewOrderExecutionProvider(source domain.NodeAddress, bus ports.Bus, timeout time.Duration, logger *zap.Logger) *OrderExecutionProvider {
	return &OrderExecutionProvider{provider: newProvider(source, bus, timeout, binding{
		role:        domain.SourceRoleOrderExecutioner,
		subscribe:   func(info domain.SessionInfo) domain.Message { return domain.SubscribeToExecution{Session: info} },
		unsubscribe: func(info domain.SessionInfo) domain.Message { return domain.UnsubscribeFromExecution{Session: info} },
	}, logger)}
}

// ExecutionSession returns the bound session
func (p *OrderExecutionProvider) ExecutionSession() (domain.SessionInfo, bool) {
	return p.session()
}
