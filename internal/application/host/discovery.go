package host

import (
	"context"
	"fmt"

	"github.com/aescanero/tradehost/pkg/domain"
	"go.uber.org/zap"
)

// GetSourceSessions asks source for the sessions it can serve. When the host
// is not connected it returns no sessions and no error. With
// includeAlreadyCreated false, sessions equal to a live session are left out.
func (h *Host) GetSourceSessions(ctx context.Context, source domain.NodeAddress, includeAlreadyCreated bool) ([]domain.SessionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.connected.Load() {
		return nil, nil
	}

	path, err := h.template.WithDestination(source)
	if err != nil {
		return nil, fmt.Errorf("failed to route to %s: %w", source, err)
	}

	reply, err := request[domain.SessionsResponse](ctx, h, path, domain.GetSessions{})
	if err != nil {
		h.logger.Warn("source did not answer session discovery",
			zap.String("source", source.String()),
			zap.Error(err))
		return nil, err
	}

	if includeAlreadyCreated {
		return reply.Sessions, nil
	}

	existing := make([]domain.SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		existing = append(existing, s.Info())
	}
	return domain.ExcludeSessions(reply.Sessions, existing), nil
}
