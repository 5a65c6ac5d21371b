package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/tradehost/internal/application/host"
	"github.com/aescanero/tradehost/internal/application/workers"
	"github.com/aescanero/tradehost/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	host    *host.Host
	store   ports.SessionStore
	health  *workers.HealthMonitor
	logger  *zap.Logger
	timeout time.Duration
}

// Config holds HTTP server configuration
type Config struct {
	Port   int
	Host   *host.Host
	Store  ports.SessionStore
	Health *workers.HealthMonitor
	Logger *zap.Logger

	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// RequestTimeout bounds handlers that talk to the platform
	RequestTimeout time.Duration
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:  router,
		host:    cfg.Host,
		store:   cfg.Store,
		health:  cfg.Health,
		logger:  cfg.Logger,
		timeout: cfg.RequestTimeout,
	}

	metricsHandler := promhttp.Handler()
	if cfg.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}
	if s.health == nil {
		s.health = workers.NewHealthMonitor(cfg.Host.HealthSnapshot, cfg.Host.QueueCapacity(), 0, nil, cfg.Logger)
	}
	s.setupRoutes(metricsHandler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metricsHandler http.Handler) {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(metricsHandler))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/host", s.handleGetHost)

		// Source endpoints
		v1.GET("/sources", s.handleListSources)
		v1.GET("/sources/:address/sessions", s.handleGetSourceSessions)

		// Session endpoints
		v1.GET("/sessions", s.handleListSessions)
		v1.POST("/sessions", s.handleCreateSession)
		v1.GET("/sessions/groups", s.handleListSessionGroups)
		v1.GET("/sessions/:id", s.handleGetSession)
		v1.DELETE("/sessions/:id", s.handleDestroySession)

		// Journal
		v1.GET("/journal", s.handleListJournal)
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetupWebSocket adds WebSocket handler to the server
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleEventStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/events/ws", wsHandler.HandleEventStream)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestContext bounds a handler that waits on the platform
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.timeout)
}
