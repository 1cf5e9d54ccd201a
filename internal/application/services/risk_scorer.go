package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// minAnalyticSampleSize is the minimum order count before a historical
	// rate is trusted; below it alerts are suppressed instead of surfacing
	// statistically noisy conclusions.
	minAnalyticSampleSize = 30

	heuristicWeightShare  = 0.4
	historicalWeightShare = 0.6

	severityWarningCutoff  = 0.3
	severityCriticalCutoff = 0.6
)

// riskHeuristic is one fixed clinical predicate evaluated against a
// prescription. Predicates return false on missing fields, so a partial
// prescription simply contributes no signal.
type riskHeuristic struct {
	alertType          string
	baseWeight         float64
	recommendedCoating string
	explanation        string
	applies            func(rx *entities.Prescription) bool
}

var riskHeuristics = []riskHeuristic{
	{
		alertType:          entities.AlertHighWrap,
		baseWeight:         0.7,
		recommendedCoating: "anti_reflective",
		explanation:        "frame wrap angle above 12 degrees with a progressive design is a known non-adaptation risk",
		applies: func(rx *entities.Prescription) bool {
			return rx.LensType == entities.LensTypeProgressive &&
				rx.FrameWrapAngle != nil && *rx.FrameWrapAngle > 12
		},
	},
	{
		alertType:          entities.AlertHighAdd,
		baseWeight:         0.6,
		recommendedCoating: "anti_reflective",
		explanation:        "add power of 2.50 or more narrows the progressive corridor and raises adaptation difficulty",
		applies: func(rx *entities.Prescription) bool {
			add := rx.MaxAdd()
			return rx.LensType == entities.LensTypeProgressive && add != nil && *add >= 2.5
		},
	},
	{
		alertType:   entities.AlertHighPowerProgressive,
		baseWeight:  0.5,
		explanation: "cylinder magnitude of 2.00 or more increases peripheral distortion sensitivity",
		applies: func(rx *entities.Prescription) bool {
			cyl := rx.MaxCylinderMagnitude()
			return cyl != nil && math.Abs(*cyl) >= 2.0
		},
	},
}

var (
	suppressedAlertOnce    sync.Once
	suppressedAlertCounter metric.Int64Counter
)

// RiskScorer evaluates the fixed heuristic list against a prescription and
// blends each triggered heuristic with the historical non-adapt rate for the
// order's lens/frame combination. It is deterministic for a fixed analytics
// snapshot and leaves persistence of the returned alerts to the caller.
type RiskScorer struct {
	analytics *AnalyticsAggregator
}

// NewRiskScorer creates a new risk scorer.
func NewRiskScorer(analytics *AnalyticsAggregator) *RiskScorer {
	return &RiskScorer{analytics: analytics}
}

// Score returns zero or more severity-tagged alerts for an order. Heuristics
// without sufficient historical backing (below the minimum sample size, or no
// data at all) are suppressed, never reported as zero risk.
func (s *RiskScorer) Score(ctx context.Context, orderID string, rx *entities.Prescription) ([]*entities.PrescriptionAlert, error) {
	logger := observability.LoggerFromContext(ctx)
	alerts := make([]*entities.PrescriptionAlert, 0, len(riskHeuristics))

	var analytic *entities.LensFrameAnalytic
	var lookedUp bool

	for _, h := range riskHeuristics {
		if !h.applies(rx) {
			continue
		}

		if !lookedUp {
			var err error
			analytic, err = s.analytics.Lookup(ctx, rx.LensType, rx.LensMaterial, rx.FrameType)
			if err != nil {
				return nil, err
			}
			lookedUp = true
		}

		if analytic == nil || analytic.TotalOrders < minAnalyticSampleSize || analytic.NonAdaptRate() == nil {
			samples := 0
			if analytic != nil {
				samples = analytic.TotalOrders
			}
			logger.Info().
				Str("order_id", orderID).
				Str("alert_type", h.alertType).
				Int("sample_size", samples).
				Msg("alert suppressed, insufficient data")
			recordSuppressedAlert(ctx, h.alertType)
			continue
		}

		historicalRate := *analytic.NonAdaptRate()
		riskScore := heuristicWeightShare*h.baseWeight + historicalWeightShare*historicalRate

		alert := &entities.PrescriptionAlert{
			ID:                     uuid.New().String(),
			OrderID:                orderID,
			AlertType:              h.alertType,
			Severity:               severityFor(riskScore),
			RiskScore:              riskScore,
			HistoricalNonAdaptRate: historicalRate,
			Explanation: fmt.Sprintf("%s; %.0f%% of %d similar orders did not adapt",
				h.explanation, historicalRate*100, analytic.TotalOrders),
			CreatedAt: time.Now().UTC(),
		}

		sibling, err := s.analytics.LowestRiskSibling(ctx, rx.FrameType, minAnalyticSampleSize)
		if err != nil {
			return nil, err
		}
		if sibling != nil && sibling.NonAdaptRate() != nil && *sibling.NonAdaptRate() < historicalRate {
			alert.RecommendedLensType = sibling.LensType
			alert.RecommendedLensMaterial = sibling.LensMaterial
			alert.RecommendedCoating = h.recommendedCoating
		}

		alerts = append(alerts, alert)
	}

	return alerts, nil
}

func severityFor(riskScore float64) entities.AlertSeverity {
	switch {
	case riskScore < severityWarningCutoff:
		return entities.SeverityInfo
	case riskScore < severityCriticalCutoff:
		return entities.SeverityWarning
	default:
		return entities.SeverityCritical
	}
}

func initSuppressedAlertCounter() {
	meter := otel.Meter("github.com/lenswise/dispense-advisor/risk_scorer")
	counter, err := meter.Int64Counter(
		"risk.alert_suppressed.count",
		metric.WithDescription("Count of risk alerts suppressed for insufficient historical data"),
	)
	if err == nil {
		suppressedAlertCounter = counter
	}
}

func recordSuppressedAlert(ctx context.Context, alertType string) {
	suppressedAlertOnce.Do(initSuppressedAlertCounter)
	if suppressedAlertCounter == nil {
		return
	}
	suppressedAlertCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("risk.alert_type", alertType)),
	)
}
