package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	sources              *prometheus.GaugeVec
	liveSessions         prometheus.Gauge
	connected            prometheus.Gauge
	sessionsCreated      *prometheus.CounterVec
	sessionsDestroyed    prometheus.Counter
	notifications        *prometheus.CounterVec
	notificationsDropped prometheus.Counter
	observerFailures     *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	queueDepth           prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered on reg.
// A nil reg registers on the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		sources: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradehost_sources",
				Help: "Number of known sources by role",
			},
			[]string{"role"},
		),
		liveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradehost_live_sessions",
				Help: "Number of live sessions",
			},
		),
		connected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradehost_platform_connected",
				Help: "1 when the host holds a sources subscription on the platform",
			},
		),
		sessionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradehost_sessions_created_total",
				Help: "Total number of session creation attempts",
			},
			[]string{"kind", "outcome"},
		),
		sessionsDestroyed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tradehost_sessions_destroyed_total",
				Help: "Total number of sessions destroyed",
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradehost_notifications_total",
				Help: "Total number of bus notifications applied",
			},
			[]string{"type"},
		),
		notificationsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tradehost_notifications_dropped_total",
				Help: "Total number of bus notifications rejected by the dispatcher",
			},
		),
		observerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradehost_observer_failures_total",
				Help: "Total number of signal observers that panicked",
			},
			[]string{"signal"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradehost_bus_request_duration_seconds",
				Help:    "Bus request/reply latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"type", "outcome"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradehost_dispatcher_queue_depth",
				Help: "Notifications waiting in the dispatcher queue",
			},
		),
	}
}

// SetSources sets the number of known sources for a role
func (c *Collector) SetSources(role string, count int) {
	c.sources.WithLabelValues(role).Set(float64(count))
}

// SetLiveSessions sets the live session gauge
func (c *Collector) SetLiveSessions(count int) {
	c.liveSessions.Set(float64(count))
}

// SetConnected sets the platform connection gauge
func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}

// RecordSessionCreated records a session creation attempt
func (c *Collector) RecordSessionCreated(kind, outcome string) {
	c.sessionsCreated.WithLabelValues(kind, outcome).Inc()
}

// RecordSessionDestroyed records a destroyed session
func (c *Collector) RecordSessionDestroyed() {
	c.sessionsDestroyed.Inc()
}

// RecordNotification records an applied notification
func (c *Collector) RecordNotification(messageType string) {
	c.notifications.WithLabelValues(messageType).Inc()
}

// RecordNotificationDropped records a notification the dispatcher rejected
func (c *Collector) RecordNotificationDropped() {
	c.notificationsDropped.Inc()
}

// RecordObserverFailure records a panicking signal observer
func (c *Collector) RecordObserverFailure(signal string) {
	c.observerFailures.WithLabelValues(signal).Inc()
}

// ObserveRequest records the latency of a bus request
func (c *Collector) ObserveRequest(messageType, outcome string, duration time.Duration) {
	c.requestDuration.WithLabelValues(messageType, outcome).Observe(duration.Seconds())
}

// SetQueueDepth sets the dispatcher queue depth
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
