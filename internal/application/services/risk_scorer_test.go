package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

func wrapProgressiveRx() *entities.Prescription {
	return &entities.Prescription{
		OD:             entities.Refraction{Sphere: floatPtr(-2.0)},
		OS:             entities.Refraction{Sphere: floatPtr(-2.25)},
		LensType:       entities.LensTypeProgressive,
		LensMaterial:   "polycarbonate",
		FrameType:      "wrap",
		FrameWrapAngle: floatPtr(15),
	}
}

func TestScore_HighWrapWithHistoricalBacking(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeProgressive, LensMaterial: "polycarbonate", FrameType: "wrap",
		TotalOrders: 200, NonAdaptCount: 50, // 25% non-adapt
	})
	// A calmer sibling for the alternative recommendation.
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeSingleVision, LensMaterial: "polycarbonate", FrameType: "wrap",
		TotalOrders: 150, NonAdaptCount: 9, // 6% non-adapt
	})
	scorer := NewRiskScorer(NewAnalyticsAggregator(repo, nil))

	alerts, err := scorer.Score(context.Background(), "order-1", wrapProgressiveRx())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, entities.AlertHighWrap, alert.AlertType)
	// 0.4*0.7 + 0.6*0.25 = 0.43
	assert.InDelta(t, 0.43, alert.RiskScore, 1e-9)
	assert.Equal(t, entities.SeverityWarning, alert.Severity)
	assert.InDelta(t, 0.25, alert.HistoricalNonAdaptRate, 1e-9)
	assert.True(t, alert.HasAlternative())
	assert.Equal(t, entities.LensTypeSingleVision, alert.RecommendedLensType)
	assert.NotEmpty(t, alert.Explanation)
}

func TestScore_SuppressedBelowMinimumSample(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeProgressive, LensMaterial: "polycarbonate", FrameType: "wrap",
		TotalOrders: 12, NonAdaptCount: 6, // noisy 50% over 12 orders
	})
	scorer := NewRiskScorer(NewAnalyticsAggregator(repo, nil))

	alerts, err := scorer.Score(context.Background(), "order-2", wrapProgressiveRx())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestScore_SuppressedWithNoHistory(t *testing.T) {
	scorer := NewRiskScorer(NewAnalyticsAggregator(newFakeAnalyticsRepo(), nil))

	alerts, err := scorer.Score(context.Background(), "order-3", wrapProgressiveRx())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestScore_NoHeuristicTriggered(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeSingleVision, LensMaterial: "cr39", FrameType: "full_rim",
		TotalOrders: 500, NonAdaptCount: 250,
	})
	scorer := NewRiskScorer(NewAnalyticsAggregator(repo, nil))

	rx := &entities.Prescription{
		OD:           entities.Refraction{Sphere: floatPtr(-1.0), Cylinder: floatPtr(-0.5)},
		LensType:     entities.LensTypeSingleVision,
		LensMaterial: "cr39",
		FrameType:    "full_rim",
	}
	alerts, err := scorer.Score(context.Background(), "order-4", rx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestScore_MissingFieldsContributeNoSignal(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeProgressive, LensMaterial: "polycarbonate", FrameType: "wrap",
		TotalOrders: 100, NonAdaptCount: 40,
	})
	scorer := NewRiskScorer(NewAnalyticsAggregator(repo, nil))

	// Progressive in a wrap frame but with no wrap angle, add, or cylinder
	// supplied: no heuristic can fire.
	rx := &entities.Prescription{
		LensType:     entities.LensTypeProgressive,
		LensMaterial: "polycarbonate",
		FrameType:    "wrap",
	}
	alerts, err := scorer.Score(context.Background(), "order-5", rx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestScore_MultipleHeuristics(t *testing.T) {
	repo := newFakeAnalyticsRepo()
	repo.seed(&entities.LensFrameAnalytic{
		LensType: entities.LensTypeProgressive, LensMaterial: "polycarbonate", FrameType: "wrap",
		TotalOrders: 300, NonAdaptCount: 210, // 70% non-adapt
	})
	scorer := NewRiskScorer(NewAnalyticsAggregator(repo, nil))

	rx := wrapProgressiveRx()
	rx.OD.Add = floatPtr(2.75)
	rx.OS.Cylinder = floatPtr(-2.5)

	alerts, err := scorer.Score(context.Background(), "order-6", rx)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	types := []string{alerts[0].AlertType, alerts[1].AlertType, alerts[2].AlertType}
	assert.Equal(t, []string{entities.AlertHighWrap, entities.AlertHighAdd, entities.AlertHighPowerProgressive}, types)

	// 0.4*0.7 + 0.6*0.7 = 0.70 for the wrap heuristic.
	assert.InDelta(t, 0.70, alerts[0].RiskScore, 1e-9)
	assert.Equal(t, entities.SeverityCritical, alerts[0].Severity)
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, entities.SeverityInfo, severityFor(0.1))
	assert.Equal(t, entities.SeverityWarning, severityFor(0.3))
	assert.Equal(t, entities.SeverityWarning, severityFor(0.59))
	assert.Equal(t, entities.SeverityCritical, severityFor(0.6))
	assert.Equal(t, entities.SeverityCritical, severityFor(0.95))
}
