package providers

import (
	"context"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to order
// outcome events. Delivery is at-least-once; consumers rely on the
// aggregator's OutcomeID dedupe for idempotence.
type EventBus interface {
	// Publish publishes an outcome event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.OutcomeEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.OutcomeEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelOrderOutcomes is the channel carrying resolved order outcomes.
const EventChannelOrderOutcomes = "order.outcomes"
