package repositories

import (
	"context"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// PatternRepository reads the clinical analytic pattern store. The store is
// read-only from this service; an external batch process refreshes it.
type PatternRepository interface {
	// GetByScenarioKey returns all patterns recorded for a bucketed
	// scenario key. An empty slice is a valid result.
	GetByScenarioKey(ctx context.Context, scenarioKey string) ([]*entities.ClinicalAnalyticPattern, error)

	// ListTop returns the highest-sample patterns, for cache warming.
	ListTop(ctx context.Context, limit int) ([]*entities.ClinicalAnalyticPattern, error)
}
