package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/providers"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/observability"
)

const (
	// maxPatternMatches bounds the response size of a pattern lookup.
	maxPatternMatches = 5

	// patternCacheTTLSeconds can be generous: the pattern store only
	// changes on the external batch refresh.
	patternCacheTTLSeconds = 3600
)

// Cylinder and wrap bucket labels. The bucketing policy must stay bit-for-bit
// stable: scenario keys are shared with the external batch that writes the
// pattern store.
const (
	cylBucketLow  = "low"  // 0 – 0.75
	cylBucketMid  = "mid"  // 0.75 – 2.0
	cylBucketHigh = "high" // 2.0+

	wrapBucketFlat     = "flat"     // < 8°
	wrapBucketStandard = "standard" // 8 – 12°
	wrapBucketWrapped  = "wrapped"  // 12°+
)

// PatternMatcher retrieves historical pattern insights applicable to a
// prescription and the extracted clinical intent. Stateless; safe for
// unbounded concurrent use.
type PatternMatcher struct {
	repo  repositories.PatternRepository
	cache providers.CacheProvider
}

// NewPatternMatcher creates a new pattern matcher. The cache is optional.
func NewPatternMatcher(repo repositories.PatternRepository, cache providers.CacheProvider) *PatternMatcher {
	return &PatternMatcher{repo: repo, cache: cache}
}

// Match buckets the prescription into a scenario key, fetches patterns for
// it, and returns those whose clinical context intersects the supplied intent
// tags, sorted by descending success rate and capped at maxPatternMatches.
// When the full key has no rows, the finest-grained dimension (wrap) is
// dropped once before giving up with an empty result.
func (m *PatternMatcher) Match(ctx context.Context, tags []string, rx *entities.Prescription) ([]*entities.ClinicalAnalyticPattern, error) {
	key := ScenarioKey(rx)
	patterns, err := m.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	if len(patterns) == 0 {
		coarser := dropWrapDimension(key)
		if coarser != key {
			observability.LoggerFromContext(ctx).Debug().
				Str("scenario_key", key).
				Str("fallback_key", coarser).
				Msg("no patterns for full scenario key, retrying coarser bucket")
			patterns, err = m.fetch(ctx, coarser)
			if err != nil {
				return nil, err
			}
		}
	}

	matched := make([]*entities.ClinicalAnalyticPattern, 0, len(patterns))
	for _, p := range patterns {
		if p.MatchesTags(tags) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].SuccessRate != matched[j].SuccessRate {
			return matched[i].SuccessRate > matched[j].SuccessRate
		}
		return matched[i].ScenarioKey < matched[j].ScenarioKey
	})

	if len(matched) > maxPatternMatches {
		matched = matched[:maxPatternMatches]
	}
	return matched, nil
}

func (m *PatternMatcher) fetch(ctx context.Context, scenarioKey string) ([]*entities.ClinicalAnalyticPattern, error) {
	cacheKey := "clinical_patterns:" + scenarioKey
	if m.cache != nil {
		if data, err := m.cache.Get(ctx, cacheKey); err == nil {
			var cached []*entities.ClinicalAnalyticPattern
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	patterns, err := m.repo.GetByScenarioKey(ctx, scenarioKey)
	if err != nil {
		return nil, err
	}

	if m.cache != nil && len(patterns) > 0 {
		if data, err := json.Marshal(patterns); err == nil {
			_ = m.cache.Set(ctx, cacheKey, data, patternCacheTTLSeconds)
		}
	}
	return patterns, nil
}

// ScenarioKey discretizes a prescription into the shared bucketed key: axis
// rounded to the nearest 15°, cylinder magnitude and wrap angle bucketed.
// The wrap dimension is omitted when no wrap angle was supplied.
func ScenarioKey(rx *entities.Prescription) string {
	axis := 0.0
	if a := rx.DominantAxis(); a != nil {
		axis = *a
	}
	cyl := 0.0
	if c := rx.MaxCylinderMagnitude(); c != nil {
		cyl = *c
	}

	parts := []string{
		fmt.Sprintf("axis:%d", bucketAxis(axis)),
		"cyl:" + bucketCylinder(cyl),
	}
	if rx.FrameWrapAngle != nil {
		parts = append(parts, "wrap:"+bucketWrap(*rx.FrameWrapAngle))
	}
	return strings.Join(parts, "|")
}

func dropWrapDimension(key string) string {
	parts := strings.Split(key, "|")
	kept := parts[:0]
	for _, p := range parts {
		if !strings.HasPrefix(p, "wrap:") {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "|")
}

func bucketAxis(axis float64) int {
	b := int(math.Round(axis/15)) * 15
	// Axis is cyclic over 180°.
	return ((b % 180) + 180) % 180
}

func bucketCylinder(magnitude float64) string {
	switch {
	case magnitude < 0.75:
		return cylBucketLow
	case magnitude < 2.0:
		return cylBucketMid
	default:
		return cylBucketHigh
	}
}

func bucketWrap(angle float64) string {
	switch {
	case angle < 8:
		return wrapBucketFlat
	case angle < 12:
		return wrapBucketStandard
	default:
		return wrapBucketWrapped
	}
}
