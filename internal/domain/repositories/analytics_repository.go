package repositories

import (
	"context"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// AnalyticsRepository owns the lens/frame outcome aggregates. Implementations
// must serialize concurrent ApplyOutcome calls for the same key (atomic
// upsert-increment in the store, not read-modify-write from the caller) so
// the count invariants hold under parallel outcome delivery.
type AnalyticsRepository interface {
	// ApplyOutcome atomically increments the aggregate for the event's
	// (lensType, lensMaterial, frameType) key, creating the row if absent.
	// Returns false when the event's OutcomeID was already processed; the
	// counters are untouched in that case.
	ApplyOutcome(ctx context.Context, event *entities.OutcomeEvent) (bool, error)

	// Lookup returns the aggregate for a combination, or nil when no
	// outcome has ever been recorded for it.
	Lookup(ctx context.Context, lensType, lensMaterial, frameType string) (*entities.LensFrameAnalytic, error)

	// ListByFrameType returns all aggregates sharing a frame type, ordered
	// by ascending non-adapt rate (zero-order rows last).
	ListByFrameType(ctx context.Context, frameType string) ([]*entities.LensFrameAnalytic, error)
}
