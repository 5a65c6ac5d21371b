package host

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/tradehost/internal/application/session"
	"github.com/aescanero/tradehost/internal/application/workers"
	metrics "github.com/aescanero/tradehost/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	ErrAlreadyInitialized = errors.New("host already initialized")
	ErrNotInitialized     = errors.New("host not initialized")
	ErrAlgorithmInit      = errors.New("algorithm initialization failed")
	ErrNotConnected       = errors.New("host not connected to platform")
	ErrUnknownSource      = errors.New("source is not registered")
	ErrProviderInit       = errors.New("provider initialization failed")
	ErrSessionInit        = errors.New("session initialization failed")
	ErrInvalidSession     = errors.New("invalid session")
	ErrSessionNotFound    = errors.New("session not found")
	ErrShutdown           = errors.New("host shut down")
)

// EventsTopic is the event bus topic host events are mirrored to
const EventsTopic = "host.events"

// Host owns the algorithm, the source registry and the live sessions
type Host struct {
	name         string
	busName      string
	bus          ports.Bus
	providers    ports.ProviderFactory
	newAlgorithm ports.AlgorithmFactory
	events       ports.EventBus
	store        ports.SessionStore
	metrics      ports.MetricsCollector
	validator    *Validator
	logger       *zap.Logger
	timeout      time.Duration
	queueSize    int
	dispatcher   *workers.Dispatcher

	// Mirrors of guarded state, written under mu and readable without it
	connected    atomic.Bool
	sessionCount atomic.Int64

	// epoch changes on every initialize and uninitialize; queued
	// notifications tagged with an older epoch are discarded
	epoch atomic.Uint64

	mu               sync.Mutex
	template         domain.RoutingPath
	algorithm        ports.Algorithm
	registered       bool
	shutdown         bool
	dataSources      map[domain.NodeAddress]struct{}
	executionSources map[domain.NodeAddress]struct{}
	sessions         []*session.ExpertSession

	observersMu       sync.Mutex
	nextObserver      int
	sourcesObservers  map[int]Observer
	sessionsObservers map[int]Observer
}

// Option configures a Host
type Option func(*Host)

// WithEventBus mirrors host events to bus
func WithEventBus(bus ports.EventBus) Option {
	return func(h *Host) {
		h.events = bus
	}
}

// WithSessionStore journals live sessions to store
func WithSessionStore(store ports.SessionStore) Option {
	return func(h *Host) {
		h.store = store
	}
}

// WithMetrics records host metrics on collector
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(h *Host) {
		h.metrics = collector
	}
}

// WithRequestTimeout bounds every bus request issued by the host
func WithRequestTimeout(timeout time.Duration) Option {
	return func(h *Host) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithQueueSize sets the notification backlog warning threshold
func WithQueueSize(size int) Option {
	return func(h *Host) {
		h.queueSize = size
	}
}

// New creates an uninitialized host
func New(
	name string,
	bus ports.Bus,
	providers ports.ProviderFactory,
	newAlgorithm ports.AlgorithmFactory,
	logger *zap.Logger,
	opts ...Option,
) *Host {
	h := &Host{
		name:              name,
		busName:           SanitizeName(name),
		bus:               bus,
		providers:         providers,
		newAlgorithm:      newAlgorithm,
		validator:         NewValidator(),
		logger:            logger,
		timeout:           ports.DefaultRequestTimeout,
		queueSize:         workers.DefaultQueueSize,
		dataSources:       make(map[domain.NodeAddress]struct{}),
		executionSources:  make(map[domain.NodeAddress]struct{}),
		sourcesObservers:  make(map[int]Observer),
		sessionsObservers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewCollector(prometheus.NewRegistry())
	}

	h.dispatcher = workers.NewDispatcher(h.queueSize, h.applyNotification, h.metrics, logger)
	return h
}

var nameReplacer = strings.NewReplacer(" ", "", "\"", "", "'", "")

// SanitizeName strips the characters that cannot travel as a bare bus token
func SanitizeName(name string) string {
	return nameReplacer.Replace(name)
}

// Name returns the configured host name
func (h *Host) Name() string {
	return h.name
}

// BusName returns the identity the host uses on the bus
func (h *Host) BusName() string {
	return h.busName
}

// IsConnected reports whether the host holds a sources subscription
func (h *Host) IsConnected() bool {
	return h.connected.Load()
}

// SessionCount returns the number of live sessions
func (h *Host) SessionCount() int {
	return int(h.sessionCount.Load())
}

// IsInitialized reports whether HostInitialize succeeded and the host has
// not been uninitialized since
func (h *Host) IsInitialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.algorithm != nil
}

// AlgorithmName returns the display name of the hosted algorithm
func (h *Host) AlgorithmName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.algorithm == nil {
		return ""
	}
	return h.algorithm.Name()
}

// DataProviderSources returns a sorted snapshot of the known data sources
func (h *Host) DataProviderSources() []domain.NodeAddress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sortedAddresses(h.dataSources)
}

// OrderExecutionSources returns a sorted snapshot of the known execution sources
func (h *Host) OrderExecutionSources() []domain.NodeAddress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sortedAddresses(h.executionSources)
}

// Sessions returns a snapshot of the live sessions in creation order
func (h *Host) Sessions() []*session.ExpertSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*session.ExpertSession, len(h.sessions))
	copy(out, h.sessions)
	return out
}

// Session returns the live session with the given ID
func (h *Host) Session(id string) (*session.ExpertSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		if s.ID() == id {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

// SessionsByGroup returns the live sessions keyed by symbol group
func (h *Host) SessionsByGroup() map[string][]*session.ExpertSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string][]*session.ExpertSession)
	for _, s := range h.sessions {
		key := s.Info().GroupKey()
		out[key] = append(out[key], s)
	}
	return out
}

// Status is a point-in-time view of the host
type Status struct {
	Name             string               `json:"name"`
	BusName          string               `json:"bus_name"`
	Algorithm        string               `json:"algorithm,omitempty"`
	Initialized      bool                 `json:"initialized"`
	Connected        bool                 `json:"connected"`
	RoutingTemplate  string               `json:"routing_template,omitempty"`
	DataSources      []domain.NodeAddress `json:"data_sources"`
	ExecutionSources []domain.NodeAddress `json:"execution_sources"`
	LiveSessions     int                  `json:"live_sessions"`
	QueueDepth       int                  `json:"queue_depth"`
}

// Status returns a consistent snapshot of the host state
func (h *Host) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Status{
		Name:             h.name,
		BusName:          h.busName,
		Initialized:      h.algorithm != nil,
		Connected:        h.connected.Load(),
		DataSources:      sortedAddresses(h.dataSources),
		ExecutionSources: sortedAddresses(h.executionSources),
		LiveSessions:     len(h.sessions),
		QueueDepth:       h.dispatcher.Depth(),
	}
	if h.algorithm != nil {
		st.Algorithm = h.algorithm.Name()
		st.RoutingTemplate = h.template.String()
	}
	return st
}

// HealthSnapshot samples the host for the health monitor
func (h *Host) HealthSnapshot() workers.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return workers.Snapshot{
		Connected:        h.connected.Load(),
		DataSources:      len(h.dataSources),
		ExecutionSources: len(h.executionSources),
		LiveSessions:     len(h.sessions),
		QueueDepth:       h.dispatcher.Depth(),
	}
}

// QueueCapacity returns the notification backlog above which the queue
// is reported as saturated
func (h *Host) QueueCapacity() int {
	if h.queueSize <= 0 {
		return workers.DefaultQueueSize
	}
	return h.queueSize
}

func sortedAddresses(set map[domain.NodeAddress]struct{}) []domain.NodeAddress {
	out := make([]domain.NodeAddress, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// setSessionsLocked replaces the live set and refreshes its mirrors
func (h *Host) setSessionsLocked(sessions []*session.ExpertSession) {
	h.sessions = sessions
	h.sessionCount.Store(int64(len(sessions)))
	h.metrics.SetLiveSessions(len(sessions))
}

// setConnectedLocked updates the connection flag and its gauge
func (h *Host) setConnectedLocked(connected bool) {
	h.connected.Store(connected)
	h.metrics.SetConnected(connected)
}

// clearSourcesLocked empties both registries and reports whether anything was removed
func (h *Host) clearSourcesLocked() bool {
	changed := len(h.dataSources) > 0 || len(h.executionSources) > 0
	h.dataSources = make(map[domain.NodeAddress]struct{})
	h.executionSources = make(map[domain.NodeAddress]struct{})
	h.refreshSourceGaugesLocked()
	return changed
}

func (h *Host) refreshSourceGaugesLocked() {
	h.metrics.SetSources(domain.SourceRoleDataProvider.String(), len(h.dataSources))
	h.metrics.SetSources(domain.SourceRoleOrderExecutioner.String(), len(h.executionSources))
}

// request issues a bounded request on behalf of the host and records its latency
func request[T domain.Message](ctx context.Context, h *Host, path domain.RoutingPath, msg domain.Message) (T, error) {
	start := time.Now()
	reply, err := ports.RequestReply[T](ctx, h.bus, path, msg, h.timeout)

	outcome := "ok"
	if err != nil {
		outcome = "no_reply"
	}
	h.metrics.ObserveRequest(msg.MessageType(), outcome, time.Since(start))
	return reply, err
}
