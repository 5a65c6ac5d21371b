package ports

import (
	"context"

	"github.com/aescanero/tradehost/pkg/domain"
)

// Provider is the lifecycle shared by data and order execution providers
type Provider interface {
	Participant

	// Initialize binds the provider to a session through the given path
	Initialize(ctx context.Context, info domain.SessionInfo, path domain.RoutingPath) error

	// UnInitialize releases the binding. Always safe to call.
	UnInitialize(ctx context.Context) error

	// IsInitialized reports whether Initialize succeeded and UnInitialize has not run
	IsInitialized() bool

	// Source returns the address of the source this provider talks to
	Source() domain.NodeAddress

	// OwnsRegistration reports whether the host registers this provider with
	// the bus and is responsible for unregistering it.
	OwnsRegistration() bool
}

// DataProvider delivers market data to a session
type DataProvider interface {
	Provider
	DataSession() (domain.SessionInfo, bool)
}

// OrderExecutionProvider executes orders for a session
type OrderExecutionProvider interface {
	Provider
	ExecutionSession() (domain.SessionInfo, bool)
}

// ProviderFactory constructs remote providers for a source address
type ProviderFactory interface {
	NewDataProvider(source domain.NodeAddress) DataProvider
	NewOrderExecutionProvider(source domain.NodeAddress) OrderExecutionProvider
}
