package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/providers"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/observability"
)

// patternWarmLimit caps how many high-sample patterns are preloaded.
const patternWarmLimit = 200

// PatternWarmingService periodically reloads the hottest clinical patterns
// into the cache after the external batch refresh window, so pattern lookups
// rarely fall through to the database.
type PatternWarmingService struct {
	repo      repositories.PatternRepository
	cache     providers.CacheProvider
	scheduler *gocron.Scheduler
}

// NewPatternWarmingService creates a new warming service.
func NewPatternWarmingService(repo repositories.PatternRepository, cache providers.CacheProvider) *PatternWarmingService {
	return &PatternWarmingService{
		repo:      repo,
		cache:     cache,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// WarmPatterns loads the top patterns and caches them grouped by scenario key.
func (s *PatternWarmingService) WarmPatterns(ctx context.Context) error {
	logger := observability.LoggerFromContext(ctx)

	patterns, err := s.repo.ListTop(ctx, patternWarmLimit)
	if err != nil {
		return err
	}

	grouped := make(map[string][]*entities.ClinicalAnalyticPattern)
	for _, p := range patterns {
		grouped[p.ScenarioKey] = append(grouped[p.ScenarioKey], p)
	}

	warmed := 0
	for key, group := range grouped {
		data, err := json.Marshal(group)
		if err != nil {
			continue
		}
		if err := s.cache.Set(ctx, "clinical_patterns:"+key, data, patternCacheTTLSeconds); err != nil {
			logger.Warn().Err(err).Str("scenario_key", key).Msg("failed to warm pattern cache entry")
			continue
		}
		warmed++
	}

	logger.Info().Int("scenario_keys", warmed).Msg("pattern cache warmed")
	return nil
}

// Start runs an initial warm and schedules recurring warms at the given
// interval. The scheduler runs in the background until Stop is called.
func (s *PatternWarmingService) Start(ctx context.Context, interval time.Duration) error {
	if err := s.WarmPatterns(ctx); err != nil {
		return err
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		if err := s.WarmPatterns(context.Background()); err != nil {
			observability.GetLogger().Error().Err(err).Msg("scheduled pattern warming failed")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop halts the recurring warms.
func (s *PatternWarmingService) Stop() {
	s.scheduler.Stop()
}
