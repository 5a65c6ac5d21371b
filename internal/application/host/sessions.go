package host

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/tradehost/internal/application/session"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"go.uber.org/zap"
)

const (
	kindRemote     = "remote"
	kindSimulation = "simulation"
)

// sessionRequest describes one session creation attempt
type sessionRequest struct {
	kind       string
	info       domain.SessionInfo
	dataSource domain.NodeAddress
	execSource domain.NodeAddress

	// checkExecSource requires execSource to be a known execution source
	checkExecSource bool

	data func() ports.DataProvider
	exec func() ports.OrderExecutionProvider
}

// CreateRemoteSession creates a session whose providers are proxied over the
// bus. A zero execSource creates a data-only session.
func (h *Host) CreateRemoteSession(ctx context.Context, dataSource, execSource domain.NodeAddress, info domain.SessionInfo) (*session.ExpertSession, error) {
	req := sessionRequest{
		kind:            kindRemote,
		info:            info,
		dataSource:      dataSource,
		execSource:      execSource,
		checkExecSource: true,
		data: func() ports.DataProvider {
			return h.providers.NewDataProvider(dataSource)
		},
	}
	if !execSource.IsZero() {
		req.exec = func() ports.OrderExecutionProvider {
			return h.providers.NewOrderExecutionProvider(execSource)
		}
	}
	return h.createSession(ctx, req)
}

// CreateSimulationSession creates a session around caller supplied providers.
// The data provider's source must be a known data source. A nil exec creates
// a data-only session.
func (h *Host) CreateSimulationSession(ctx context.Context, data ports.DataProvider, exec ports.OrderExecutionProvider, info domain.SessionInfo) (*session.ExpertSession, error) {
	if data == nil {
		h.metrics.RecordSessionCreated(kindSimulation, "invalid")
		return nil, fmt.Errorf("%w: data provider is required", ErrInvalidSession)
	}

	req := sessionRequest{
		kind:       kindSimulation,
		info:       info,
		dataSource: data.Source(),
		data:       func() ports.DataProvider { return data },
	}
	if exec != nil {
		req.execSource = exec.Source()
		req.exec = func() ports.OrderExecutionProvider { return exec }
	}
	return h.createSession(ctx, req)
}

func (h *Host) createSession(ctx context.Context, req sessionRequest) (*session.ExpertSession, error) {
	if err := h.validator.ValidateSessionInfo(req.info); err != nil {
		h.metrics.RecordSessionCreated(req.kind, "invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	h.mu.Lock()
	s, outcome, err := h.createSessionLocked(ctx, req)
	h.mu.Unlock()

	h.metrics.RecordSessionCreated(req.kind, outcome)
	if err != nil {
		return nil, err
	}

	h.logger.Info("session created",
		zap.String("session_id", s.ID()),
		zap.String("session", req.info.Name),
		zap.String("kind", req.kind),
		zap.String("data_source", req.dataSource.String()),
		zap.String("execution_source", req.execSource.String()))

	h.raiseSessionsChanged(ctx)
	return s, nil
}

// createSessionLocked runs the construction sequence. Every provider attached
// during a failed attempt is released before it returns.
func (h *Host) createSessionLocked(ctx context.Context, req sessionRequest) (*session.ExpertSession, string, error) {
	if !h.connected.Load() {
		return nil, "not_connected", ErrNotConnected
	}
	if _, ok := h.dataSources[req.dataSource]; !ok {
		return nil, "unknown_source", fmt.Errorf("%w: data source %s", ErrUnknownSource, req.dataSource)
	}
	if req.checkExecSource && req.exec != nil {
		if _, ok := h.executionSources[req.execSource]; !ok {
			return nil, "unknown_source", fmt.Errorf("%w: execution source %s", ErrUnknownSource, req.execSource)
		}
	}

	// Step 1: data provider
	data := req.data()
	if err := h.attachProvider(ctx, data, req.info); err != nil {
		h.logger.Error("data provider initialization failed",
			zap.String("session", req.info.Name),
			zap.String("data_source", req.dataSource.String()),
			zap.Error(err))
		return nil, "provider_init_failed", fmt.Errorf("%w: data source %s: %v", ErrProviderInit, req.dataSource, err)
	}

	// Step 2: optional execution provider
	var exec ports.OrderExecutionProvider
	if req.exec != nil {
		exec = req.exec()
		if err := h.attachProvider(ctx, exec, req.info); err != nil {
			h.releaseProvider(ctx, data)
			h.logger.Error("execution provider initialization failed",
				zap.String("session", req.info.Name),
				zap.String("execution_source", req.execSource.String()),
				zap.Error(err))
			return nil, "provider_init_failed", fmt.Errorf("%w: execution source %s: %v", ErrProviderInit, req.execSource, err)
		}
	}

	// Step 3: the session itself
	var opts []session.Option
	if l, ok := h.algorithm.(session.Listener); ok {
		opts = append(opts, session.WithListener(l))
	}
	if req.kind == kindSimulation {
		opts = append(opts, session.WithSimulated())
	}
	s := session.New(req.info, opts...)

	if err := s.Initialize(ctx, data, exec); err != nil {
		if exec != nil {
			h.releaseProvider(ctx, exec)
		}
		h.releaseProvider(ctx, data)
		h.logger.Error("session initialization failed",
			zap.String("session", req.info.Name),
			zap.Error(err))
		return nil, "session_init_failed", fmt.Errorf("%w: %v", ErrSessionInit, err)
	}

	// Step 4: commit
	h.setSessionsLocked(append(h.sessions, s))
	h.journalSave(ctx, s, req)

	return s, "success", nil
}

// attachProvider registers p when the host owns its registration and binds
// it to the session. On failure p is left unregistered and uninitialized.
func (h *Host) attachProvider(ctx context.Context, p ports.Provider, info domain.SessionInfo) error {
	path, err := h.template.WithDestination(p.Source())
	if err != nil {
		return err
	}

	if p.OwnsRegistration() {
		if err := h.bus.Register(ctx, p); err != nil {
			return fmt.Errorf("failed to register provider: %w", err)
		}
	}

	if err := p.Initialize(ctx, info, path); err != nil {
		h.releaseProvider(ctx, p)
		return err
	}

	return nil
}

// releaseProvider uninitializes p and leaves the bus if the host registered it
func (h *Host) releaseProvider(ctx context.Context, p ports.Provider) {
	if err := p.UnInitialize(ctx); err != nil {
		h.logger.Warn("provider uninitialization failed",
			zap.String("provider", p.ParticipantID()),
			zap.String("source", p.Source().String()),
			zap.Error(err))
	}

	if p.OwnsRegistration() {
		if err := h.bus.Unregister(ctx, p); err != nil {
			h.logger.Warn("failed to unregister provider",
				zap.String("provider", p.ParticipantID()),
				zap.Error(err))
		}
	}
}

// DestroySession releases the providers of a live session, tears it down
// and removes it from the live set.
func (h *Host) DestroySession(ctx context.Context, s *session.ExpertSession) error {
	if s == nil {
		return ErrSessionNotFound
	}

	h.mu.Lock()
	idx := -1
	for i, live := range h.sessions {
		if live == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID())
	}

	h.tearDownLocked(ctx, s)

	sessions := make([]*session.ExpertSession, 0, len(h.sessions)-1)
	sessions = append(sessions, h.sessions[:idx]...)
	sessions = append(sessions, h.sessions[idx+1:]...)
	h.setSessionsLocked(sessions)
	h.mu.Unlock()

	h.logger.Info("session destroyed",
		zap.String("session_id", s.ID()),
		zap.String("session", s.Info().Name))

	h.raiseSessionsChanged(ctx)
	return nil
}

// DestroySessionByID destroys the live session with the given ID
func (h *Host) DestroySessionByID(ctx context.Context, id string) error {
	s, err := h.Session(id)
	if err != nil {
		return fmt.Errorf("%w: %s", err, id)
	}
	return h.DestroySession(ctx, s)
}

// tearDownLocked releases everything a live session holds. The caller
// removes it from the live set.
func (h *Host) tearDownLocked(ctx context.Context, s *session.ExpertSession) {
	if data := s.DataProvider(); data != nil {
		h.releaseProvider(ctx, data)
	}
	if exec := s.OrderExecutionProvider(); exec != nil {
		h.releaseProvider(ctx, exec)
	}
	s.UnInitialize(ctx)

	h.metrics.RecordSessionDestroyed()
	h.journalDelete(ctx, s)
}

func (h *Host) journalSave(ctx context.Context, s *session.ExpertSession, req sessionRequest) {
	if h.store == nil {
		return
	}

	record := ports.SessionRecord{
		SessionID:       s.ID(),
		Host:            h.busName,
		Info:            s.Info(),
		DataSource:      req.dataSource,
		ExecutionSource: req.execSource,
		Simulated:       s.Simulated(),
		CreatedAt:       s.CreatedAt().UTC().Truncate(time.Millisecond),
	}
	if err := h.store.Save(ctx, record); err != nil {
		h.logger.Error("failed to journal session",
			zap.String("session_id", s.ID()),
			zap.Error(err))
	}
}

func (h *Host) journalDelete(ctx context.Context, s *session.ExpertSession) {
	if h.store == nil {
		return
	}
	if err := h.store.Delete(ctx, s.ID()); err != nil {
		h.logger.Error("failed to remove session from journal",
			zap.String("session_id", s.ID()),
			zap.Error(err))
	}
}
