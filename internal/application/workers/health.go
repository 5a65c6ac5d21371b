package workers

import (
	"sync"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"go.uber.org/zap"
)

// Snapshot is the host state sampled by the health monitor
type Snapshot struct {
	Connected        bool
	DataSources      int
	ExecutionSources int
	LiveSessions     int
	QueueDepth       int
}

// SnapshotFunc samples the monitored host
type SnapshotFunc func() Snapshot

// HealthMonitor periodically logs host state and refreshes gauges
type HealthMonitor struct {
	snapshot      SnapshotFunc
	queueCapacity int
	interval      time.Duration
	metrics       ports.MetricsCollector
	logger        *zap.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus represents the health status of the host
type HealthStatus struct {
	Connected        bool      `json:"connected"`
	DataSources      int       `json:"data_sources"`
	ExecutionSources int       `json:"execution_sources"`
	LiveSessions     int       `json:"live_sessions"`
	QueueDepth       int       `json:"queue_depth"`
	Healthy          bool      `json:"healthy"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewHealthMonitor creates a new health monitor. queueCapacity is the
// dispatcher capacity used to flag a saturated notification queue.
func NewHealthMonitor(snapshot SnapshotFunc, queueCapacity int, interval time.Duration, metrics ports.MetricsCollector, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		snapshot:      snapshot,
		queueCapacity: queueCapacity,
		interval:      interval,
		metrics:       metrics,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start starts the health monitor
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop stops the health monitor
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
}

// run is the main health monitoring loop
func (h *HealthMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// checkHealth logs host status and records gauges
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.logger.Info("host health check",
		zap.Bool("connected", status.Connected),
		zap.Int("data_sources", status.DataSources),
		zap.Int("execution_sources", status.ExecutionSources),
		zap.Int("live_sessions", status.LiveSessions),
		zap.Int("queue_depth", status.QueueDepth),
		zap.Bool("healthy", status.Healthy))

	h.metrics.SetConnected(status.Connected)
	h.metrics.SetSources(domain.SourceRoleDataProvider.String(), status.DataSources)
	h.metrics.SetSources(domain.SourceRoleOrderExecutioner.String(), status.ExecutionSources)
	h.metrics.SetLiveSessions(status.LiveSessions)
	h.metrics.SetQueueDepth(status.QueueDepth)

	if !status.Connected {
		h.logger.Warn("host is not connected to the platform",
			zap.Int("live_sessions", status.LiveSessions))
	}

	if h.queueCapacity > 0 && status.QueueDepth >= h.queueCapacity {
		h.logger.Warn("notification queue is saturated",
			zap.Int("capacity", h.queueCapacity))
	}
}

// GetStatus returns the current health status
func (h *HealthMonitor) GetStatus() *HealthStatus {
	s := h.snapshot()

	saturated := h.queueCapacity > 0 && s.QueueDepth >= h.queueCapacity

	return &HealthStatus{
		Connected:        s.Connected,
		DataSources:      s.DataSources,
		ExecutionSources: s.ExecutionSources,
		LiveSessions:     s.LiveSessions,
		QueueDepth:       s.QueueDepth,
		Healthy:          s.Connected && !saturated,
		Timestamp:        time.Now(),
	}
}

// IsHealthy returns true if the host is connected and keeping up with notifications
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
