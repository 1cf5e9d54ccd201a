package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

func outcomeEvent(id string, nonAdapt, remade bool) *entities.OutcomeEvent {
	return &entities.OutcomeEvent{
		OutcomeID:    id,
		LensType:     entities.LensTypeProgressive,
		LensMaterial: "polycarbonate",
		FrameType:    "wrap",
		NonAdapt:     nonAdapt,
		Remade:       remade,
		ReportedAt:   time.Now().UTC(),
	}
}

func TestRecordOutcome_DerivedRatesMatchCounts(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	agg := NewAnalyticsAggregator(repo, nil)
	ctx := context.Background()

	// 3 non-adapts out of 10 orders.
	for i := 0; i < 10; i++ {
		require.NoError(t, agg.RecordOutcome(ctx, outcomeEvent(fmt.Sprintf("o-%d", i), i < 3, false)))
	}

	analytic, err := agg.Lookup(ctx, entities.LensTypeProgressive, "polycarbonate", "wrap")
	require.NoError(t, err)
	require.NotNil(t, analytic)

	assert.Equal(t, 10, analytic.TotalOrders)
	assert.Equal(t, 3, analytic.NonAdaptCount)
	require.NotNil(t, analytic.NonAdaptRate())
	assert.InDelta(t, 0.3, *analytic.NonAdaptRate(), 1e-9)
	require.NotNil(t, analytic.RemakeRate())
	assert.Zero(t, *analytic.RemakeRate())
}

func TestRecordOutcome_DuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	agg := NewAnalyticsAggregator(repo, nil)
	ctx := context.Background()

	event := outcomeEvent("dup-1", true, false)
	require.NoError(t, agg.RecordOutcome(ctx, event))
	require.NoError(t, agg.RecordOutcome(ctx, event))
	require.NoError(t, agg.RecordOutcome(ctx, event))

	analytic, err := agg.Lookup(ctx, event.LensType, event.LensMaterial, event.FrameType)
	require.NoError(t, err)
	require.NotNil(t, analytic)
	assert.Equal(t, 1, analytic.TotalOrders)
	assert.Equal(t, 1, analytic.NonAdaptCount)
}

func TestRecordOutcome_MissingFieldsRejected(t *testing.T) {
	agg := NewAnalyticsAggregator(newFakeAnalyticsRepo(), nil)
	ctx := context.Background()

	noID := outcomeEvent("", false, false)
	assert.Error(t, agg.RecordOutcome(ctx, noID))

	noKey := outcomeEvent("o-1", false, false)
	noKey.FrameType = ""
	assert.Error(t, agg.RecordOutcome(ctx, noKey))
}

func TestRecordOutcome_InvalidatesCachedAggregate(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	cache := newFakeCache()
	agg := NewAnalyticsAggregator(repo, cache)
	ctx := context.Background()

	require.NoError(t, agg.RecordOutcome(ctx, outcomeEvent("c-1", false, false)))

	// Populate the cache, then record another outcome.
	_, err := agg.Lookup(ctx, entities.LensTypeProgressive, "polycarbonate", "wrap")
	require.NoError(t, err)
	exists, _ := cache.Exists(ctx, "lens_analytic:progressive:polycarbonate:wrap")
	assert.True(t, exists)

	require.NoError(t, agg.RecordOutcome(ctx, outcomeEvent("c-2", true, false)))
	exists, _ = cache.Exists(ctx, "lens_analytic:progressive:polycarbonate:wrap")
	assert.False(t, exists)

	analytic, err := agg.Lookup(ctx, entities.LensTypeProgressive, "polycarbonate", "wrap")
	require.NoError(t, err)
	assert.Equal(t, 2, analytic.TotalOrders)
}

func TestLookup_UnknownCombinationReturnsNil(t *testing.T) {
	agg := NewAnalyticsAggregator(newFakeAnalyticsRepo(), nil)

	analytic, err := agg.Lookup(context.Background(), entities.LensTypeBifocal, "cr39", "rimless")
	require.NoError(t, err)
	assert.Nil(t, analytic)
}

func TestAverageRemakeDays(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	agg := NewAnalyticsAggregator(repo, nil)
	ctx := context.Background()

	first := outcomeEvent("r-1", false, true)
	first.RemakeDays = intPtr(4)
	second := outcomeEvent("r-2", false, true)
	second.RemakeDays = intPtr(10)
	require.NoError(t, agg.RecordOutcome(ctx, first))
	require.NoError(t, agg.RecordOutcome(ctx, second))

	analytic, err := agg.Lookup(ctx, first.LensType, first.LensMaterial, first.FrameType)
	require.NoError(t, err)
	require.NotNil(t, analytic.AverageRemakeDays())
	assert.InDelta(t, 7.0, *analytic.AverageRemakeDays(), 1e-9)

	// A remake reported without a day count increments the remake count but
	// must not pull the average toward zero.
	third := outcomeEvent("r-3", false, true)
	require.NoError(t, agg.RecordOutcome(ctx, third))

	analytic, err = agg.Lookup(ctx, first.LensType, first.LensMaterial, first.FrameType)
	require.NoError(t, err)
	assert.Equal(t, 3, analytic.RemakeCount)
	require.NotNil(t, analytic.AverageRemakeDays())
	assert.InDelta(t, 7.0, *analytic.AverageRemakeDays(), 1e-9)
}

func TestAverageRemakeDays_NilWhenNoDaysReported(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	agg := NewAnalyticsAggregator(repo, nil)
	ctx := context.Background()

	require.NoError(t, agg.RecordOutcome(ctx, outcomeEvent("r-only", false, true)))

	analytic, err := agg.Lookup(ctx, entities.LensTypeProgressive, "polycarbonate", "wrap")
	require.NoError(t, err)
	require.NotNil(t, analytic)
	assert.Equal(t, 1, analytic.RemakeCount)
	assert.Nil(t, analytic.AverageRemakeDays())
}

func TestLowestRiskSibling_PrefersLowerRateThenLargerSample(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeProgressive, LensMaterial: "polycarbonate", FrameType: "wrap",
		TotalOrders: 200, NonAdaptCount: 50,
	})
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeSingleVision, LensMaterial: "polycarbonate", FrameType: "wrap",
		TotalOrders: 100, NonAdaptCount: 10,
	})
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeSingleVision, LensMaterial: "trivex", FrameType: "wrap",
		TotalOrders: 400, NonAdaptCount: 40,
	})
	// Below minimum sample, must be ignored even though the rate is zero.
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeBifocal, LensMaterial: "cr39", FrameType: "wrap",
		TotalOrders: 5, NonAdaptCount: 0,
	})
	agg := NewAnalyticsAggregator(repo, nil)

	best, err := agg.LowestRiskSibling(context.Background(), "wrap", 30)
	require.NoError(t, err)
	require.NotNil(t, best)
	// Both single_vision rows sit at 10%; the larger sample wins the tie.
	assert.Equal(t, entities.LensTypeSingleVision, best.LensType)
	assert.Equal(t, "trivex", best.LensMaterial)
}
