package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

func astigmaticWrapRx() *entities.Prescription {
	return &entities.Prescription{
		OD:             entities.Refraction{Cylinder: floatPtr(-1.25), Axis: floatPtr(92)},
		LensType:       entities.LensTypeProgressive,
		LensMaterial:   "polycarbonate",
		FrameType:      "wrap",
		FrameWrapAngle: floatPtr(14),
	}
}

func pattern(scenarioKey string, successRate float64, bestFor ...string) *entities.ClinicalAnalyticPattern {
	return &entities.ClinicalAnalyticPattern{
		ID:          scenarioKey + fmt.Sprintf("-%0.2f", successRate),
		ScenarioKey: scenarioKey,
		SuccessRate: successRate,
		SampleSize:  100,
		ClinicalContext: entities.ClinicalContext{
			BestFor: bestFor,
		},
	}
}

func TestScenarioKey_Bucketing(t *testing.T) {
	// 92° rounds to the nearest 15° step, 1.25 cyl is the mid bucket and
	// 14° wrap is the wrapped bucket.
	assert.Equal(t, "axis:90|cyl:mid|wrap:wrapped", ScenarioKey(astigmaticWrapRx()))

	// No wrap angle drops the wrap dimension entirely.
	rx := astigmaticWrapRx()
	rx.FrameWrapAngle = nil
	assert.Equal(t, "axis:90|cyl:mid", ScenarioKey(rx))

	// A bare prescription buckets to the zero scenario.
	assert.Equal(t, "axis:0|cyl:low", ScenarioKey(&entities.Prescription{LensType: entities.LensTypeSingleVision}))
}

func TestBucketAxis_CyclicOver180(t *testing.T) {
	assert.Equal(t, 0, bucketAxis(2))
	assert.Equal(t, 15, bucketAxis(10))
	assert.Equal(t, 90, bucketAxis(92))
	assert.Equal(t, 0, bucketAxis(178)) // 180 wraps to 0
	assert.Equal(t, 165, bucketAxis(170))
}

func TestBucketCylinder_Boundaries(t *testing.T) {
	assert.Equal(t, cylBucketLow, bucketCylinder(0.5))
	assert.Equal(t, cylBucketMid, bucketCylinder(0.75))
	assert.Equal(t, cylBucketMid, bucketCylinder(1.99))
	assert.Equal(t, cylBucketHigh, bucketCylinder(2.0))
}

func TestBucketWrap_Boundaries(t *testing.T) {
	assert.Equal(t, wrapBucketFlat, bucketWrap(7.9))
	assert.Equal(t, wrapBucketStandard, bucketWrap(8))
	assert.Equal(t, wrapBucketStandard, bucketWrap(11.9))
	assert.Equal(t, wrapBucketWrapped, bucketWrap(12))
}

func TestMatch_FiltersByTagsAndSortsBySuccessRate(t *testing.T) {
	repo := newFakePatternRepo()
	key := "axis:90|cyl:mid|wrap:wrapped"
	repo.byKey[key] = []*entities.ClinicalAnalyticPattern{
		pattern(key, 0.72, entities.TagComputerHeavyUse),
		pattern(key, 0.91, entities.TagComputerHeavyUse, entities.TagEyeStrainComplaint),
		pattern(key, 0.55, entities.TagOutdoorLifestyle), // no tag overlap, dropped
		pattern(key, 0.85, entities.TagEyeStrainComplaint),
	}
	matcher := NewPatternMatcher(repo, nil)

	matched, err := matcher.Match(context.Background(), []string{entities.TagComputerHeavyUse, entities.TagEyeStrainComplaint}, astigmaticWrapRx())
	require.NoError(t, err)
	require.Len(t, matched, 3)
	assert.InDelta(t, 0.91, matched[0].SuccessRate, 1e-9)
	assert.InDelta(t, 0.85, matched[1].SuccessRate, 1e-9)
	assert.InDelta(t, 0.72, matched[2].SuccessRate, 1e-9)
}

func TestMatch_CapsAtFive(t *testing.T) {
	repo := newFakePatternRepo()
	key := "axis:90|cyl:mid|wrap:wrapped"
	for i := 0; i < 8; i++ {
		repo.byKey[key] = append(repo.byKey[key], pattern(key, 0.5+float64(i)*0.05, entities.TagGlareComplaint))
	}
	matcher := NewPatternMatcher(repo, nil)

	matched, err := matcher.Match(context.Background(), []string{entities.TagGlareComplaint}, astigmaticWrapRx())
	require.NoError(t, err)
	assert.Len(t, matched, maxPatternMatches)
}

func TestMatch_FallsBackToCoarserKey(t *testing.T) {
	repo := newFakePatternRepo()
	// Nothing under the full key, one row under the wrap-less key.
	repo.byKey["axis:90|cyl:mid"] = []*entities.ClinicalAnalyticPattern{
		pattern("axis:90|cyl:mid", 0.8, entities.TagComputerHeavyUse),
	}
	matcher := NewPatternMatcher(repo, nil)

	matched, err := matcher.Match(context.Background(), []string{entities.TagComputerHeavyUse}, astigmaticWrapRx())
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, []string{"axis:90|cyl:mid|wrap:wrapped", "axis:90|cyl:mid"}, repo.getCalls)
}

func TestMatch_NoTagsMatchesNothing(t *testing.T) {
	repo := newFakePatternRepo()
	key := "axis:90|cyl:mid|wrap:wrapped"
	repo.byKey[key] = []*entities.ClinicalAnalyticPattern{
		pattern(key, 0.9, entities.TagComputerHeavyUse),
	}
	matcher := NewPatternMatcher(repo, nil)

	matched, err := matcher.Match(context.Background(), nil, astigmaticWrapRx())
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestMatch_ServedFromCacheOnSecondCall(t *testing.T) {
	repo := newFakePatternRepo()
	cache := newFakeCache()
	key := "axis:90|cyl:mid|wrap:wrapped"
	repo.byKey[key] = []*entities.ClinicalAnalyticPattern{
		pattern(key, 0.9, entities.TagComputerHeavyUse),
	}
	matcher := NewPatternMatcher(repo, cache)
	tags := []string{entities.TagComputerHeavyUse}

	_, err := matcher.Match(context.Background(), tags, astigmaticWrapRx())
	require.NoError(t, err)
	_, err = matcher.Match(context.Background(), tags, astigmaticWrapRx())
	require.NoError(t, err)

	assert.Len(t, repo.getCalls, 1, "second lookup should hit the cache")
}
