package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/tradehost/pkg/domain"
)

// DefaultRequestTimeout bounds every request/reply exchange unless overridden
const DefaultRequestTimeout = 10 * time.Second

// Participant is an addressable entity on the bus
type Participant interface {
	// ParticipantID returns the address other nodes use to reach this entity
	ParticipantID() string

	// HandleMessage receives one-way messages delivered to this entity
	HandleMessage(ctx context.Context, msg domain.Message)
}

// Responder answers requests addressed to a participant
type Responder interface {
	HandleRequest(ctx context.Context, from domain.NodeAddress, msg domain.Message) (domain.Message, error)
}

// Bus is the request/forward/reply contract of the message bus
type Bus interface {
	// Send delivers a message along a path without waiting for a reply
	Send(ctx context.Context, path domain.RoutingPath, msg domain.Message) error

	// Request delivers a message and waits for the correlated reply.
	// The wait is bounded by ctx.
	Request(ctx context.Context, path domain.RoutingPath, msg domain.Message) (domain.Message, error)

	// Register joins the bus as an addressable participant
	Register(ctx context.Context, p Participant) error

	// Unregister leaves the bus
	Unregister(ctx context.Context, p Participant) error
}

// RequestReply sends msg along path and waits up to timeout for a reply of
// type T. Timeouts, delivery failures and unexpected reply types all map to
// domain.ErrNoReply.
func RequestReply[T domain.Message](ctx context.Context, bus Bus, path domain.RoutingPath, msg domain.Message, timeout time.Duration) (T, error) {
	var zero T
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := bus.Request(reqCtx, path, msg)
	if err != nil {
		return zero, fmt.Errorf("%w: %s to %s: %v", domain.ErrNoReply, msg.MessageType(), path, err)
	}

	typed, ok := reply.(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected reply %T to %s", domain.ErrNoReply, reply, msg.MessageType())
	}

	return typed, nil
}
