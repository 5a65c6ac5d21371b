package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aescanero/tradehost/internal/application/host"
	"github.com/aescanero/tradehost/internal/application/session"
	"github.com/aescanero/tradehost/pkg/adapters/providers/simulated"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Session creation modes
const (
	ModeRemote     = "remote"
	ModeSimulation = "simulation"
)

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	Mode            string             `json:"mode"`
	DataSource      domain.NodeAddress `json:"data_source" binding:"required"`
	ExecutionSource domain.NodeAddress `json:"execution_source"`
	Info            domain.SessionInfo `json:"info"`
}

// SessionResponse is the API view of a live session
type SessionResponse struct {
	ID              string             `json:"id"`
	State           session.State      `json:"state"`
	Simulated       bool               `json:"simulated"`
	Info            domain.SessionInfo `json:"info"`
	DataSource      domain.NodeAddress `json:"data_source,omitempty"`
	ExecutionSource domain.NodeAddress `json:"execution_source,omitempty"`
	CreatedAt       string             `json:"created_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// hostError maps host sentinels onto HTTP statuses
func hostError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, host.ErrInvalidSession):
		errorJSON(c, http.StatusBadRequest, "INVALID_SESSION", err.Error())
	case errors.Is(err, host.ErrSessionNotFound):
		errorJSON(c, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, host.ErrUnknownSource):
		errorJSON(c, http.StatusUnprocessableEntity, "UNKNOWN_SOURCE", err.Error())
	case errors.Is(err, host.ErrNotInitialized):
		errorJSON(c, http.StatusConflict, "NOT_INITIALIZED", err.Error())
	case errors.Is(err, host.ErrNotConnected):
		errorJSON(c, http.StatusServiceUnavailable, "NOT_CONNECTED", err.Error())
	case errors.Is(err, host.ErrSessionInit):
		errorJSON(c, http.StatusConflict, "SESSION_REJECTED", err.Error())
	case errors.Is(err, host.ErrProviderInit), errors.Is(err, domain.ErrNoReply):
		errorJSON(c, http.StatusBadGateway, "SOURCE_UNAVAILABLE", err.Error())
	default:
		errorJSON(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func toSessionResponse(s *session.ExpertSession) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID(),
		State:     s.State(),
		Simulated: s.Simulated(),
		Info:      s.Info(),
		CreatedAt: s.CreatedAt().Format(time.RFC3339),
	}
	if p := s.DataProvider(); p != nil {
		resp.DataSource = p.Source()
	}
	if p := s.OrderExecutionProvider(); p != nil {
		resp.ExecutionSource = p.Source()
	}
	return resp
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := s.health.GetStatus()

	code := http.StatusOK
	label := "healthy"
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		label = "degraded"
	}

	c.JSON(code, gin.H{
		"status":    label,
		"timestamp": status.Timestamp,
		"checks":    status,
	})
}

// handleGetHost returns the host status
func (s *Server) handleGetHost(c *gin.Context) {
	c.JSON(http.StatusOK, s.host.Status())
}

// handleListSources returns the source registry
func (s *Server) handleListSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected":         s.host.IsConnected(),
		"data_sources":      s.host.DataProviderSources(),
		"execution_sources": s.host.OrderExecutionSources(),
	})
}

// handleGetSourceSessions asks a source for the sessions it can serve
func (s *Server) handleGetSourceSessions(c *gin.Context) {
	source := domain.NodeAddress(c.Param("address"))

	include := false
	if raw := c.Query("include_created"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "include_created must be a boolean")
			return
		}
		include = v
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	sessions, err := s.host.GetSourceSessions(ctx, source, include)
	if err != nil {
		s.logger.Warn("session discovery failed",
			zap.String("source", source.String()),
			zap.Error(err))
		hostError(c, err)
		return
	}
	if sessions == nil {
		sessions = []domain.SessionInfo{}
	}

	c.JSON(http.StatusOK, gin.H{
		"source":    source,
		"connected": s.host.IsConnected(),
		"sessions":  sessions,
	})
}

// handleListSessions lists live sessions
func (s *Server) handleListSessions(c *gin.Context) {
	live := s.host.Sessions()
	out := make([]SessionResponse, len(live))
	for i, sess := range live {
		out[i] = toSessionResponse(sess)
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": out,
		"total":    len(out),
	})
}

// handleListSessionGroups lists live sessions keyed by symbol group
func (s *Server) handleListSessionGroups(c *gin.Context) {
	groups := s.host.SessionsByGroup()
	out := make(map[string][]SessionResponse, len(groups))
	for key, members := range groups {
		views := make([]SessionResponse, len(members))
		for i, sess := range members {
			views[i] = toSessionResponse(sess)
		}
		out[key] = views
	}

	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// handleGetSession returns one live session
func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.host.Session(c.Param("id"))
	if err != nil {
		hostError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// handleCreateSession creates a remote or simulated session
func (s *Server) handleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var (
		sess *session.ExpertSession
		err  error
	)
	switch req.Mode {
	case "", ModeRemote:
		sess, err = s.host.CreateRemoteSession(ctx, req.DataSource, req.ExecutionSource, req.Info)
	case ModeSimulation:
		data := simulated.NewDataProvider(req.DataSource, simulated.WithLogger(s.logger))
		var exec ports.OrderExecutionProvider
		if !req.ExecutionSource.IsZero() {
			exec = simulated.NewOrderExecutionProvider(req.ExecutionSource, simulated.WithLogger(s.logger))
		}
		sess, err = s.host.CreateSimulationSession(ctx, data, exec, req.Info)
	default:
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "mode must be remote or simulation")
		return
	}
	if err != nil {
		s.logger.Error("failed to create session",
			zap.String("data_source", req.DataSource.String()),
			zap.String("execution_source", req.ExecutionSource.String()),
			zap.Error(err))
		hostError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// handleDestroySession tears down a live session
func (s *Server) handleDestroySession(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.host.DestroySessionByID(ctx, id); err != nil {
		hostError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": "destroyed",
	})
}

// handleListJournal lists the persisted session journal
func (s *Server) handleListJournal(c *gin.Context) {
	if s.store == nil {
		errorJSON(c, http.StatusServiceUnavailable, "JOURNAL_NOT_AVAILABLE", "Session journal is not configured")
		return
	}

	records, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "JOURNAL_ERROR",
				Message: "Failed to retrieve session journal",
				Details: err.Error(),
			},
		})
		return
	}
	if records == nil {
		records = []ports.SessionRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}
