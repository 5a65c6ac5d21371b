package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the host
const ServiceName = "tradehost.Host"

// StatusSource reports whether the host can serve requests
type StatusSource interface {
	IsConnected() bool
}

// Server represents the gRPC API server
type Server struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	source   StatusSource
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// Config holds gRPC server configuration
type Config struct {
	Port   int
	Source StatusSource
	Logger *zap.Logger

	// Listener overrides Port when set
	Listener net.Listener

	// StatusInterval is how often the health status is refreshed
	StatusInterval time.Duration
}

// NewServer creates a new gRPC server
func NewServer(cfg *Config) (*Server, error) {
	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("failed to create listener: %w", err)
		}
	}

	interval := cfg.StatusInterval
	if interval <= 0 {
		interval = time.Second
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	s := &Server{
		server:   grpcServer,
		listener: listener,
		health:   healthServer,
		source:   cfg.Source,
		interval: interval,
		logger:   cfg.Logger,
	}
	s.refresh()

	return s, nil
}

// Start starts the gRPC server
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.listener.Addr().String()))

	s.mu.Lock()
	if s.stopCh == nil {
		s.stopCh = make(chan struct{})
		s.done = make(chan struct{})
		go s.watch(s.stopCh, s.done)
	}
	s.mu.Unlock()

	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	s.mu.Lock()
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.done
		s.stopCh = nil
	}
	s.mu.Unlock()

	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("gRPC graceful stop interrupted: %w", ctx.Err())
	}

	s.logger.Info("gRPC server shut down complete")
	return nil
}

// watch keeps the health status in line with the platform connection
func (s *Server) watch(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Server) refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.source != nil && s.source.IsConnected() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
