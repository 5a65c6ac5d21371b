package passive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aescanero/tradehost/internal/application/session"
	"github.com/aescanero/tradehost/pkg/ports"
	"go.uber.org/zap"
)

// ErrCapacityReached is returned when the algorithm already runs MaxSessions sessions
var ErrCapacityReached = errors.New("algorithm session capacity reached")

// Algorithm accepts sessions without trading on them
type Algorithm struct {
	host        ports.AlgorithmHost
	name        string
	maxSessions int
	logger      *zap.Logger

	mu          sync.Mutex
	initialized bool
	attached    map[string]struct{}
}

// New creates a passive algorithm. maxSessions <= 0 means unlimited.
func New(host ports.AlgorithmHost, name string, maxSessions int, logger *zap.Logger) *Algorithm {
	return &Algorithm{
		host:        host,
		name:        name,
		maxSessions: maxSessions,
		logger:      logger,
		attached:    make(map[string]struct{}),
	}
}

// Name returns the display name
func (a *Algorithm) Name() string {
	return fmt.Sprintf("passive@%s", a.name)
}

// Initialize marks the algorithm ready
func (a *Algorithm) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return fmt.Errorf("algorithm %s already initialized", a.name)
	}
	a.initialized = true

	a.logger.Info("algorithm initialized",
		zap.String("algorithm", a.Name()),
		zap.String("host", a.host.BusName()))
	return nil
}

// UnInitialize releases the algorithm
func (a *Algorithm) UnInitialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.initialized = false
	a.attached = make(map[string]struct{})

	a.logger.Info("algorithm uninitialized", zap.String("algorithm", a.Name()))
	return nil
}

// SessionInitializing accepts the session unless capacity is reached
func (a *Algorithm) SessionInitializing(ctx context.Context, s *session.ExpertSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return fmt.Errorf("algorithm %s is not initialized", a.name)
	}
	if a.maxSessions > 0 && len(a.attached) >= a.maxSessions {
		return fmt.Errorf("%w: %d", ErrCapacityReached, a.maxSessions)
	}
	a.attached[s.ID()] = struct{}{}

	a.logger.Info("session attached",
		zap.String("algorithm", a.Name()),
		zap.String("session_id", s.ID()),
		zap.String("session", s.Info().Name),
		zap.String("symbol", s.Info().Symbol.Name),
		zap.Bool("simulated", s.Simulated()),
		zap.Bool("connected", a.host.IsConnected()))
	return nil
}

// SessionUnInitialized forgets a detached session
func (a *Algorithm) SessionUnInitialized(ctx context.Context, s *session.ExpertSession) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.attached, s.ID())

	a.logger.Info("session detached",
		zap.String("algorithm", a.Name()),
		zap.String("session_id", s.ID()),
		zap.Int("attached", len(a.attached)))
}

// Attached returns the number of attached sessions
func (a *Algorithm) Attached() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.attached)
}
