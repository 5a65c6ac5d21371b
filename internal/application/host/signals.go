package host

import (
	"context"
	"runtime/debug"
	"sort"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observer is called with the host after a committed state change
type Observer func(h *Host)

const (
	signalSourcesChanged  = "sources_changed"
	signalSessionsChanged = "sessions_changed"
)

// OnSourcesChanged registers fn for sources-changed signals and returns a
// function that removes it.
func (h *Host) OnSourcesChanged(fn Observer) func() {
	return h.observe(h.sourcesObservers, fn)
}

// OnSessionsChanged registers fn for sessions-changed signals and returns a
// function that removes it.
func (h *Host) OnSessionsChanged(fn Observer) func() {
	return h.observe(h.sessionsObservers, fn)
}

func (h *Host) observe(set map[int]Observer, fn Observer) func() {
	h.observersMu.Lock()
	id := h.nextObserver
	h.nextObserver++
	set[id] = fn
	h.observersMu.Unlock()

	return func() {
		h.observersMu.Lock()
		delete(set, id)
		h.observersMu.Unlock()
	}
}

// raiseSourcesChanged must be called without holding mu
func (h *Host) raiseSourcesChanged(ctx context.Context) {
	h.raise(signalSourcesChanged, h.sourcesObservers)
	h.publish(ctx, domain.EventTypeSourcesChanged, map[string]interface{}{
		"data_sources":      h.DataProviderSources(),
		"execution_sources": h.OrderExecutionSources(),
	})
}

// raiseSessionsChanged must be called without holding mu
func (h *Host) raiseSessionsChanged(ctx context.Context) {
	h.raise(signalSessionsChanged, h.sessionsObservers)
	h.publish(ctx, domain.EventTypeSessionsChanged, map[string]interface{}{
		"live_sessions": h.SessionCount(),
	})
}

func (h *Host) raise(signal string, set map[int]Observer) {
	h.observersMu.Lock()
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	observers := make([]Observer, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		observers = append(observers, set[id])
	}
	h.observersMu.Unlock()

	for _, fn := range observers {
		h.safeCall(signal, fn)
	}
}

// safeCall invokes an observer and recovers from any panic so the
// remaining observers still run.
func (h *Host) safeCall(signal string, fn Observer) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.RecordObserverFailure(signal)
			h.logger.Error("signal observer panicked",
				zap.String("signal", signal),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn(h)
}

// publish mirrors an event to the event bus. Failures are logged only.
func (h *Host) publish(ctx context.Context, eventType domain.EventType, data map[string]interface{}) {
	if h.events == nil {
		return
	}

	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Host:      h.busName,
		Timestamp: time.Now(),
		Data:      data,
	}

	if err := h.events.Publish(ctx, EventsTopic, event); err != nil {
		h.logger.Error("failed to publish host event",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
