package host

import (
	"context"
	"fmt"

	"github.com/aescanero/tradehost/pkg/domain"
	"go.uber.org/zap"
)

// HostInitialize constructs and initializes the algorithm, joins the bus and
// subscribes to source notifications along template.
//
// A nil error means the algorithm is running. Whether the platform accepted
// the subscription is reported separately by IsConnected.
func (h *Host) HostInitialize(ctx context.Context, template domain.RoutingPath) error {
	if err := h.validator.ValidateTemplate(template); err != nil {
		return fmt.Errorf("invalid routing template: %w", err)
	}

	h.mu.Lock()

	if h.shutdown {
		h.mu.Unlock()
		return ErrShutdown
	}
	if h.algorithm != nil {
		h.mu.Unlock()
		return ErrAlreadyInitialized
	}

	algo, err := h.newAlgorithm(h, h.busName)
	if err != nil {
		h.mu.Unlock()
		h.logger.Error("failed to construct algorithm",
			zap.String("host", h.busName),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrAlgorithmInit, err)
	}

	if err := algo.Initialize(ctx); err != nil {
		h.mu.Unlock()
		h.logger.Error("algorithm initialization failed",
			zap.String("host", h.busName),
			zap.String("algorithm", algo.Name()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrAlgorithmInit, err)
	}

	h.algorithm = algo
	h.template = template.Clone()
	h.epoch.Add(1)
	h.dispatcher.Start()

	if err := h.bus.Register(ctx, h); err != nil {
		h.logger.Error("failed to join the bus",
			zap.String("host", h.busName),
			zap.Error(err))
	} else {
		h.registered = true
	}

	result, err := request[domain.OperationResult](ctx, h, h.template, domain.SubscribeToSources{})
	if err == nil {
		err = result.Err()
	}
	connected := err == nil
	h.setConnectedLocked(connected)

	h.mu.Unlock()

	if connected {
		h.logger.Info("host initialized",
			zap.String("host", h.busName),
			zap.String("algorithm", algo.Name()),
			zap.String("routing_template", template.String()))
		h.publish(ctx, domain.EventTypeHostConnected, nil)
	} else {
		h.logger.Warn("host initialized without platform subscription",
			zap.String("host", h.busName),
			zap.String("algorithm", algo.Name()),
			zap.String("routing_template", template.String()),
			zap.Error(err))
	}

	return nil
}

// HostUnInitialize unsubscribes from the platform, destroys every live
// session, clears the registry and releases the algorithm. Calling it on an
// uninitialized host has no effect.
func (h *Host) HostUnInitialize(ctx context.Context) error {
	h.mu.Lock()

	wasConnected := h.connected.Load()
	if wasConnected {
		if err := h.bus.Send(ctx, h.template, domain.UnsubscribeFromSources{Immediate: false}); err != nil {
			h.logger.Warn("failed to unsubscribe from sources",
				zap.String("host", h.busName),
				zap.Error(err))
		}
		h.setConnectedLocked(false)
	}

	destroyed := len(h.sessions)
	for _, s := range h.sessions {
		h.tearDownLocked(ctx, s)
	}
	h.setSessionsLocked(nil)

	sourcesCleared := h.clearSourcesLocked()
	h.epoch.Add(1)

	if h.algorithm != nil {
		if err := h.algorithm.UnInitialize(ctx); err != nil {
			h.logger.Error("algorithm uninitialization failed",
				zap.String("host", h.busName),
				zap.String("algorithm", h.algorithm.Name()),
				zap.Error(err))
		}
		h.algorithm = nil
	}

	if h.registered {
		if err := h.bus.Unregister(ctx, h); err != nil {
			h.logger.Warn("failed to leave the bus",
				zap.String("host", h.busName),
				zap.Error(err))
		}
		h.registered = false
	}

	h.mu.Unlock()

	if destroyed > 0 {
		h.logger.Info("destroyed live sessions", zap.Int("count", destroyed))
		h.raiseSessionsChanged(ctx)
	}
	if sourcesCleared {
		h.raiseSourcesChanged(ctx)
	}
	if wasConnected {
		h.publish(ctx, domain.EventTypeHostDisconnected, nil)
	}

	return nil
}

// Shutdown uninitializes the host and drains the notification queue.
// The host cannot be initialized again afterwards.
func (h *Host) Shutdown(ctx context.Context) error {
	h.logger.Info("shutting down session host", zap.String("host", h.busName))

	h.mu.Lock()
	h.shutdown = true
	h.mu.Unlock()

	if err := h.HostUnInitialize(ctx); err != nil {
		return err
	}

	if err := h.dispatcher.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to drain notifications: %w", err)
	}

	h.logger.Info("session host shut down complete", zap.String("host", h.busName))
	return nil
}
