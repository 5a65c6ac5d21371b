package ports

import (
	"context"

	"github.com/aescanero/tradehost/pkg/domain"
)

// EventHandler processes an event delivered by an EventBus
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus mirrors host events to external observers
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
