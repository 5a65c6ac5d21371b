package ports

import "time"

// MetricsCollector records host metrics
type MetricsCollector interface {
	SetSources(role string, count int)
	SetLiveSessions(count int)
	SetConnected(connected bool)
	RecordSessionCreated(kind, outcome string)
	RecordSessionDestroyed()
	RecordNotification(messageType string)
	RecordNotificationDropped()
	RecordObserverFailure(signal string)
	ObserveRequest(messageType, outcome string, duration time.Duration)
	SetQueueDepth(depth int)
}
