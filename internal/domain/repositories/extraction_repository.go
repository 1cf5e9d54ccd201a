package repositories

import (
	"context"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// ExtractionRepository persists clinical intent extractions. Records are
// immutable; re-analysis inserts a new record for the same order.
type ExtractionRepository interface {
	// Create persists a new extraction record.
	Create(ctx context.Context, extraction *entities.ClinicalIntentExtraction) error

	// GetLatestByOrder returns the most recent extraction for an order, or
	// nil when the order has never been analyzed.
	GetLatestByOrder(ctx context.Context, orderID string) (*entities.ClinicalIntentExtraction, error)
}

// RecommendationRepository persists composed recommendation sets. A new set
// supersedes (never merges into) the previous one for the same order.
type RecommendationRepository interface {
	// Create persists a new recommendation set.
	Create(ctx context.Context, set *entities.RecommendationSet) error

	// GetLatestByOrder returns the most recent set for an order, or nil.
	GetLatestByOrder(ctx context.Context, orderID string) (*entities.RecommendationSet, error)
}
