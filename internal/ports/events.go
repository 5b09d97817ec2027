package ports

import (
	"context"

	"github.com/loopfi/conductor/internal/domain"
)

// TopicExecutionEvents carries every execution and node state transition
const TopicExecutionEvents = "execution.events"

// EventHandler processes a single event delivered by the bus
type EventHandler func(ctx context.Context, event domain.ExecutionEvent) error

// EventBus decouples the coordinator (producer) from the broadcaster and any
// other listeners (consumers)
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.ExecutionEvent) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}
