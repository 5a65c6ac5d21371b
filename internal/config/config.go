package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "TRADEHOST_"

// Config holds all configuration for the trading host
type Config struct {
	// ConfigFile names an optional YAML file overlaid on top of the environment
	ConfigFile string `env:"CONFIG_FILE" yaml:"-"`

	// Server configuration
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080" yaml:"http_port"`
	GRPCPort int    `env:"GRPC_PORT" envDefault:"9090" yaml:"grpc_port"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`

	Host      HostConfig      `envPrefix:"HOST_" yaml:"host"`
	Algorithm AlgorithmConfig `envPrefix:"ALGORITHM_" yaml:"algorithm"`
	Bus       BusConfig       `envPrefix:"BUS_" yaml:"bus"`
	NATS      NATSConfig      `envPrefix:"NATS_" yaml:"nats"`
	Redis     RedisConfig     `envPrefix:"REDIS_" yaml:"redis"`
	Events    BackendConfig   `envPrefix:"EVENTS_" yaml:"events"`
	Storage   StorageConfig   `envPrefix:"STORAGE_" yaml:"storage"`
	Workers   WorkerConfig    `envPrefix:"WORKER_" yaml:"workers"`
	Timeouts  TimeoutConfig   `envPrefix:"TIMEOUT_" yaml:"timeouts"`

	// Sources seeds the in-process platform when the bus kind is memory
	Sources []SourceConfig `yaml:"sources"`
}

// HostConfig holds the host identity and routing
type HostConfig struct {
	Name string `env:"NAME" envDefault:"tradehost" yaml:"name"`

	// RoutingTemplate is the path template for platform requests. The final
	// hop must be empty ("" or "*"); it is filled with the destination source.
	RoutingTemplate []string      `env:"ROUTING_TEMPLATE" envSeparator:"," envDefault:"platform,*" yaml:"routing_template"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s" yaml:"request_timeout"`
}

// AlgorithmConfig selects the algorithm bound to the host
type AlgorithmConfig struct {
	Kind        string `env:"KIND" envDefault:"passive" yaml:"kind"`
	MaxSessions int    `env:"MAX_SESSIONS" envDefault:"0" yaml:"max_sessions"`
}

// BusConfig selects the message bus transport
type BusConfig struct {
	Kind string `env:"KIND" envDefault:"memory" yaml:"kind"`

	// PlatformAddress is where the in-process platform listens in memory mode
	PlatformAddress string `env:"PLATFORM_ADDRESS" envDefault:"platform" yaml:"platform_address"`
}

// NATSConfig holds NATS connection configuration
type NATSConfig struct {
	URL            string        `env:"URL" envDefault:"nats://localhost:4222" yaml:"url"`
	SubjectPrefix  string        `env:"SUBJECT_PREFIX" envDefault:"tradehost" yaml:"subject_prefix"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s" yaml:"connect_timeout"`
	ReconnectWait  time.Duration `env:"RECONNECT_WAIT" envDefault:"2s" yaml:"reconnect_wait"`
	MaxReconnects  int           `env:"MAX_RECONNECTS" envDefault:"60" yaml:"max_reconnects"`
	FlushTimeout   time.Duration `env:"FLUSH_TIMEOUT" envDefault:"2s" yaml:"flush_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379" yaml:"addr"`
	Password string `env:"PASS" yaml:"password"`
	DB       int    `env:"DB" envDefault:"0" yaml:"db"`

	// Connection pool settings
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10" yaml:"pool_size"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2" yaml:"min_idle_conns"`
	MaxRetries   int           `env:"MAX_RETRIES" envDefault:"3" yaml:"max_retries"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s" yaml:"read_timeout"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s" yaml:"write_timeout"`
}

// BackendConfig selects an adapter backend
type BackendConfig struct {
	Backend string `env:"BACKEND" envDefault:"memory" yaml:"backend"`

	// StreamMaxLen caps Redis streams when the redis backend is used
	StreamMaxLen int64 `env:"STREAM_MAX_LEN" envDefault:"10000" yaml:"stream_max_len"`
}

// StorageConfig selects the session journal backend
type StorageConfig struct {
	Backend string        `env:"BACKEND" envDefault:"memory" yaml:"backend"`
	TTL     time.Duration `env:"TTL" envDefault:"0s" yaml:"ttl"`
}

// WorkerConfig holds notification dispatcher configuration
type WorkerConfig struct {
	QueueSize           int           `env:"QUEUE_SIZE" envDefault:"256" yaml:"queue_size"`
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"30s" yaml:"health_check_interval"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"SHUTDOWN" envDefault:"30s" yaml:"shutdown"`
}

// SourceConfig describes a source served by the in-process platform
type SourceConfig struct {
	Address  string               `yaml:"address"`
	Role     string               `yaml:"role"`
	Sessions []domain.SessionInfo `yaml:"sessions"`
}

// Load reads configuration from environment variables and, when
// TRADEHOST_CONFIG_FILE is set, overlays the named YAML file
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := cfg.overlayFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if strings.TrimSpace(c.Host.Name) == "" {
		return fmt.Errorf("host name is required")
	}
	template := c.RoutingTemplate()
	if template.Len() == 0 {
		return fmt.Errorf("routing template must have at least one hop")
	}
	if !template.Destination().IsZero() {
		return fmt.Errorf("routing template must end with an empty hop")
	}
	if len(template.Segments()) == 0 {
		return fmt.Errorf("routing template must name at least one hop")
	}
	if c.Host.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.Algorithm.Kind == "" {
		return fmt.Errorf("algorithm kind is required")
	}
	if c.Algorithm.MaxSessions < 0 {
		return fmt.Errorf("algorithm max sessions cannot be negative")
	}

	switch c.Bus.Kind {
	case "memory":
		if c.Bus.PlatformAddress == "" {
			return fmt.Errorf("platform address is required for the memory bus")
		}
		for i, src := range c.Sources {
			if src.Address == "" {
				return fmt.Errorf("source %d: address cannot be empty", i)
			}
			if domain.ParseSourceRole(src.Role) == domain.SourceRoleUnknown {
				return fmt.Errorf("source '%s': unknown role %q", src.Address, src.Role)
			}
		}
	case "nats":
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS url is required for the nats bus")
		}
		if c.NATS.SubjectPrefix == "" {
			return fmt.Errorf("NATS subject prefix cannot be empty")
		}
	default:
		return fmt.Errorf("unsupported bus kind: %s (must be memory or nats)", c.Bus.Kind)
	}

	if err := validateBackend("events", c.Events.Backend); err != nil {
		return err
	}
	if err := validateBackend("storage", c.Storage.Backend); err != nil {
		return err
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate worker config
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("dispatcher queue size must be at least 1")
	}
	if c.Workers.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

func validateBackend(name, backend string) error {
	switch backend {
	case "memory", "redis":
		return nil
	default:
		return fmt.Errorf("unsupported %s backend: %s (must be memory or redis)", name, backend)
	}
}

// UsesRedis reports whether any adapter needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Events.Backend == "redis" || c.Storage.Backend == "redis"
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// RoutingTemplate returns the configured template as a routing path
func (c *Config) RoutingTemplate() domain.RoutingPath {
	return domain.ParseRoutingPath(c.Host.RoutingTemplate)
}
