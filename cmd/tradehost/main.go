package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/tradehost/internal/application/host"
	"github.com/aescanero/tradehost/internal/application/workers"
	"github.com/aescanero/tradehost/internal/config"
	"github.com/aescanero/tradehost/pkg/adapters/algorithm"
	"github.com/aescanero/tradehost/pkg/adapters/bus/memory"
	natsbus "github.com/aescanero/tradehost/pkg/adapters/bus/nats"
	eventsmemory "github.com/aescanero/tradehost/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/tradehost/pkg/adapters/events/redis"
	"github.com/aescanero/tradehost/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/tradehost/pkg/adapters/providers/remote"
	storagememory "github.com/aescanero/tradehost/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/tradehost/pkg/adapters/storage/redis"
	"github.com/aescanero/tradehost/pkg/api/grpc"
	"github.com/aescanero/tradehost/pkg/api/http"
	"github.com/aescanero/tradehost/pkg/api/websocket"
	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting trading host",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("host", cfg.Host.Name))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("trading host failed", zap.Error(err))
	}

	logger.Info("trading host shut down complete")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	busName := domain.NodeAddress(host.SanitizeName(cfg.Host.Name))

	// Redis is only dialled when an adapter needs it
	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Redis close error", zap.Error(err))
			}
		}()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize adapters
	bus, closeBus, err := newBus(ctx, cfg, busName, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	eventBus, err := newEventBus(cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer func() { _ = eventBus.Close() }()

	store := newSessionStore(cfg, redisClient, logger)

	metricsCollector := prometheus.NewCollector(nil)

	newAlgorithm, err := algorithm.NewFactory(&algorithm.Config{
		Kind:        cfg.Algorithm.Kind,
		MaxSessions: cfg.Algorithm.MaxSessions,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create algorithm factory: %w", err)
	}

	// Initialize the host
	h := host.New(cfg.Host.Name, bus, remote.NewFactory(bus, cfg.Host.RequestTimeout, logger), newAlgorithm, logger,
		host.WithEventBus(eventBus),
		host.WithSessionStore(store),
		host.WithMetrics(metricsCollector),
		host.WithRequestTimeout(cfg.Host.RequestTimeout),
		host.WithQueueSize(cfg.Workers.QueueSize),
	)

	if err := h.HostInitialize(ctx, cfg.RoutingTemplate()); err != nil {
		return fmt.Errorf("failed to initialize host: %w", err)
	}
	if !h.IsConnected() {
		logger.Warn("host started without a platform connection",
			zap.String("routing_template", cfg.RoutingTemplate().String()))
	}

	healthMonitor := workers.NewHealthMonitor(h.HealthSnapshot, h.QueueCapacity(), cfg.Workers.HealthCheckInterval, metricsCollector, logger)
	healthMonitor.Start()
	defer healthMonitor.Stop()

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:           cfg.HTTPPort,
		Host:           h,
		Store:          store,
		Health:         healthMonitor,
		Logger:         logger,
		RequestTimeout: cfg.Host.RequestTimeout,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, host.EventsTopic, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Source: h,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	logger.Info("trading host started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("bus", cfg.Bus.Kind),
		zap.String("bus_name", h.BusName()),
		zap.String("algorithm", h.AlgorithmName()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(grpcServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received shutdown signal")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := h.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("host shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newBus connects the configured transport. In memory mode it also starts
// the in-process platform seeded with the configured sources.
func newBus(ctx context.Context, cfg *config.Config, local domain.NodeAddress, logger *zap.Logger) (ports.Bus, func(), error) {
	switch cfg.Bus.Kind {
	case "nats":
		bus, err := natsbus.Connect(natsbus.Config{
			URL:            cfg.NATS.URL,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			ClientName:     local.String(),
			ConnectTimeout: cfg.NATS.ConnectTimeout,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			FlushTimeout:   cfg.NATS.FlushTimeout,
		}, local, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect message bus: %w", err)
		}
		return bus, func() {
			if err := bus.Close(); err != nil {
				logger.Error("NATS close error", zap.Error(err))
			}
		}, nil

	default:
		network := memory.NewNetwork(logger)
		platform := memory.NewPlatform(network, domain.NodeAddress(cfg.Bus.PlatformAddress), logger)
		for _, src := range cfg.Sources {
			platform.AddSource(ctx, memory.Source{
				Address:  domain.NodeAddress(src.Address),
				Role:     domain.ParseSourceRole(src.Role),
				Sessions: src.Sessions,
			})
		}
		logger.Info("in-process platform ready",
			zap.String("address", cfg.Bus.PlatformAddress),
			zap.Int("sources", len(cfg.Sources)))
		return network.Connect(local), func() {}, nil
	}
}

func newEventBus(cfg *config.Config, client *goredis.Client, logger *zap.Logger) (ports.EventBus, error) {
	if cfg.Events.Backend != "redis" {
		return eventsmemory.NewInMemoryEventBus(logger), nil
	}

	eventBus, err := eventsredis.NewStreamsEventBus(client, cfg.Events.StreamMaxLen, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	return eventBus, nil
}

func newSessionStore(cfg *config.Config, client *goredis.Client, logger *zap.Logger) ports.SessionStore {
	if cfg.Storage.Backend != "redis" {
		return storagememory.NewInMemorySessionStore()
	}
	return storageredis.NewSessionStore(client, cfg.Storage.TTL, logger)
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
