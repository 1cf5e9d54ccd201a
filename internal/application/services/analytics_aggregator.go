package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/providers"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/observability"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// analyticCacheTTLSeconds bounds how stale a cached aggregate read may be.
// Risk scoring tolerates eventual consistency on historical rates.
const analyticCacheTTLSeconds = 300

// AnalyticsAggregator owns the rolling outcome statistics keyed by
// (lensType, lensMaterial, frameType). Writes serialize in the backing store
// via atomic upsert-increments; reads may come from a slightly stale cache
// snapshot.
type AnalyticsAggregator struct {
	repo  repositories.AnalyticsRepository
	cache providers.CacheProvider
}

// NewAnalyticsAggregator creates a new aggregator. The cache is optional.
func NewAnalyticsAggregator(repo repositories.AnalyticsRepository, cache providers.CacheProvider) *AnalyticsAggregator {
	return &AnalyticsAggregator{
		repo:  repo,
		cache: cache,
	}
}

// RecordOutcome applies one resolved-order outcome to the matching aggregate.
// Safe under at-least-once delivery: re-delivery of an already-processed
// OutcomeID is a no-op.
func (s *AnalyticsAggregator) RecordOutcome(ctx context.Context, event *entities.OutcomeEvent) error {
	if event.OutcomeID == "" {
		return apperrors.NewValidationError("outcome event is missing an outcome id")
	}
	if event.LensType == "" || event.LensMaterial == "" || event.FrameType == "" {
		return apperrors.NewValidationError("outcome event is missing the lens/frame combination key")
	}
	if event.ReportedAt.IsZero() {
		event.ReportedAt = time.Now().UTC()
	}

	applied, err := s.repo.ApplyOutcome(ctx, event)
	if err != nil {
		return err
	}

	logger := observability.LoggerFromContext(ctx)
	if !applied {
		logger.Debug().
			Str("outcome_id", event.OutcomeID).
			Msg("duplicate outcome delivery ignored")
		return nil
	}

	logger.Info().
		Str("outcome_id", event.OutcomeID).
		Str("lens_type", event.LensType).
		Str("lens_material", event.LensMaterial).
		Str("frame_type", event.FrameType).
		Bool("non_adapt", event.NonAdapt).
		Bool("remade", event.Remade).
		Msg("outcome recorded")

	if s.cache != nil {
		_ = s.cache.Delete(ctx, analyticCacheKey(event.LensType, event.LensMaterial, event.FrameType))
	}
	return nil
}

// Lookup returns the aggregate for a combination, or nil when no outcome has
// ever been recorded for it. Cached reads may lag recent writes by up to the
// cache TTL.
func (s *AnalyticsAggregator) Lookup(ctx context.Context, lensType, lensMaterial, frameType string) (*entities.LensFrameAnalytic, error) {
	key := analyticCacheKey(lensType, lensMaterial, frameType)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached entities.LensFrameAnalytic
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	analytic, err := s.repo.Lookup(ctx, lensType, lensMaterial, frameType)
	if err != nil {
		return nil, err
	}
	if analytic == nil {
		return nil, nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(analytic); err == nil {
			_ = s.cache.Set(ctx, key, data, analyticCacheTTLSeconds)
		}
	}
	return analytic, nil
}

// LowestRiskSibling returns the lens/material combination sharing the given
// frame type with the lowest non-adapt rate over at least minSample orders,
// or nil when no combination qualifies.
func (s *AnalyticsAggregator) LowestRiskSibling(ctx context.Context, frameType string, minSample int) (*entities.LensFrameAnalytic, error) {
	siblings, err := s.repo.ListByFrameType(ctx, frameType)
	if err != nil {
		return nil, err
	}

	var best *entities.LensFrameAnalytic
	for _, sib := range siblings {
		if sib.TotalOrders < minSample {
			continue
		}
		rate := sib.NonAdaptRate()
		if rate == nil {
			continue
		}
		if best == nil {
			best = sib
			continue
		}
		bestRate := *best.NonAdaptRate()
		switch {
		case *rate < bestRate:
			best = sib
		case *rate == bestRate && sib.TotalOrders > best.TotalOrders:
			// Prefer the larger sample on ties so the pick is stable.
			best = sib
		}
	}
	return best, nil
}

func analyticCacheKey(lensType, lensMaterial, frameType string) string {
	return fmt.Sprintf("lens_analytic:%s:%s:%s", lensType, lensMaterial, frameType)
}
