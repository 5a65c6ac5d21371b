package remote

import (
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"go.uber.org/zap"
)

// Factory creates remote providers bound to one bus
type Factory struct {
	bus     ports.Bus
	timeout time.Duration
	logger  *zap.Logger
}

// NewFactory creates a remote provider factory
func NewFactory(bus ports.Bus, timeout time.Duration, logger *zap.Logger) *Factory {
	return &Factory{
		bus:     bus,
		timeout: timeout,
		logger:  logger,
	}
}

// NewDataProvider creates a remote data provider for source
func (f *Factory) NewDataProvider(source domain.NodeAddress) ports.DataProvider {
	return NewDataProvider(source, f.bus, f.timeout, f.logger)
}

// NewOrderExecutionProvider creates a remote execution provider for source
func (f *Factory) NewOrderExecutionProvider(source domain.NodeAddress) ports.OrderExecutionProvider {
	return NewOrderExecutionProvider(source, f.bus, f.timeout, f.logger)
}
