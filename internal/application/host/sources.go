package host

import (
	"context"

	"github.com/aescanero/tradehost/pkg/domain"
	"go.uber.org/zap"
)

// ParticipantID returns the host bus identity
func (h *Host) ParticipantID() string {
	return h.busName
}

// queuedNotification tags a bus notification with the epoch it arrived in
type queuedNotification struct {
	domain.Message
	epoch uint64
}

// HandleMessage queues an inbound notification. It never blocks and never
// takes the host lock, so the bus may deliver while a request is in flight.
func (h *Host) HandleMessage(ctx context.Context, msg domain.Message) {
	if err := h.dispatcher.Enqueue(queuedNotification{Message: msg, epoch: h.epoch.Load()}); err != nil {
		h.logger.Debug("dropped bus notification",
			zap.String("host", h.busName),
			zap.String("type", msg.MessageType()),
			zap.Error(err))
	}
}

// applyNotification runs on the dispatcher worker. Notifications queued
// before the latest initialize or uninitialize are discarded.
func (h *Host) applyNotification(ctx context.Context, msg domain.Message) {
	queued, ok := msg.(queuedNotification)
	if !ok {
		queued = queuedNotification{Message: msg, epoch: h.epoch.Load()}
	}

	switch m := queued.Message.(type) {
	case domain.SourceUpdated:
		h.updateSource(ctx, m, &queued.epoch)
	case domain.SubscriptionTerminated:
		h.terminateSubscription(ctx, &queued.epoch)
	default:
		h.logger.Debug("ignoring unexpected notification",
			zap.String("type", msg.MessageType()))
	}
}

// OnSourceUpdated adds or removes a source from the registry of its role
// and raises sources-changed. Unknown roles are ignored.
func (h *Host) OnSourceUpdated(ctx context.Context, update domain.SourceUpdated) {
	h.updateSource(ctx, update, nil)
}

// OnSubscriptionTerminated drops the platform connection and clears the
// registry. Live sessions are kept until they are destroyed explicitly.
func (h *Host) OnSubscriptionTerminated(ctx context.Context) {
	h.terminateSubscription(ctx, nil)
}

// staleLocked reports whether a queued notification of epoch must be
// discarded. Direct calls pass a nil epoch and always apply.
func (h *Host) staleLocked(epoch *uint64) bool {
	if epoch == nil {
		return false
	}
	return h.algorithm == nil || *epoch != h.epoch.Load()
}

func (h *Host) updateSource(ctx context.Context, update domain.SourceUpdated, epoch *uint64) {
	h.mu.Lock()

	if h.staleLocked(epoch) {
		h.mu.Unlock()
		h.logger.Debug("discarding stale source update",
			zap.String("source", update.Source.String()))
		return
	}

	var set map[domain.NodeAddress]struct{}
	switch update.Role {
	case domain.SourceRoleDataProvider:
		set = h.dataSources
	case domain.SourceRoleOrderExecutioner:
		set = h.executionSources
	default:
		h.mu.Unlock()
		h.logger.Debug("ignoring source update with unknown role",
			zap.String("source", update.Source.String()))
		return
	}

	if update.Added {
		set[update.Source] = struct{}{}
	} else {
		delete(set, update.Source)
	}
	h.refreshSourceGaugesLocked()

	h.mu.Unlock()

	h.logger.Debug("source updated",
		zap.String("source", update.Source.String()),
		zap.String("role", update.Role.String()),
		zap.Bool("added", update.Added))

	h.raiseSourcesChanged(ctx)
}

func (h *Host) terminateSubscription(ctx context.Context, epoch *uint64) {
	h.mu.Lock()

	if h.staleLocked(epoch) {
		h.mu.Unlock()
		h.logger.Debug("discarding stale subscription termination")
		return
	}

	wasConnected := h.connected.Load()
	h.setConnectedLocked(false)
	h.clearSourcesLocked()
	live := len(h.sessions)
	h.mu.Unlock()

	h.logger.Warn("platform terminated the sources subscription",
		zap.String("host", h.busName),
		zap.Int("live_sessions", live))

	h.raiseSourcesChanged(ctx)
	if wasConnected {
		h.publish(ctx, domain.EventTypeHostDisconnected, nil)
	}
}
