package algorithm

import (
	"fmt"

	"github.com/aescanero/tradehost/pkg/adapters/algorithm/passive"
	"github.com/aescanero/tradehost/pkg/ports"
	"go.uber.org/zap"
)

// Config holds algorithm configuration
type Config struct {
	Kind        string
	MaxSessions int
	Logger      *zap.Logger
}

// NewFactory returns the constructor for the configured algorithm kind
func NewFactory(cfg *Config) (ports.AlgorithmFactory, error) {
	switch cfg.Kind {
	case "passive":
		return func(host ports.AlgorithmHost, name string) (ports.Algorithm, error) {
			return passive.New(host, name, cfg.MaxSessions, cfg.Logger), nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm kind: %s", cfg.Kind)
	}
}
