package services

import (
	"context"
	"fmt"
	"strings"
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
	// tierCatalogTimeout bounds each per-tier catalog lookup; expiry
	// degrades the tier instead of failing the whole analysis.
	tierCatalogTimeout = 2 * time.Second

	patternScoreWeight = 0.4
	catalogScoreWeight = 0.3
	intentScoreWeight  = 0.3
)

var (
	degradedTierOnce    sync.Once
	degradedTierCounter metric.Int64Counter
)

// scoreSignal is one leg of a weighted score. Absent signals are excluded
// from the blend and the remaining weights renormalized, so a missing input
// lowers confidence without hard-failing the analysis.
type scoreSignal struct {
	weight  float64
	value   float64
	present bool
}

func weightedScore(signals ...scoreSignal) float64 {
	totalWeight, sum := 0.0, 0.0
	for _, s := range signals {
		if !s.present {
			continue
		}
		totalWeight += s.weight
		sum += s.weight * s.value
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}

// RecommendationComposer orchestrates the intent extractor, pattern matcher,
// and catalog matcher into three ranked, explainable recommendation tiers.
// The three legs are independent interfaces so any one can be swapped for a
// learned implementation without touching the composition policy.
type RecommendationComposer struct {
	extractor *IntentExtractor
	patterns  *PatternMatcher
	catalog   *CatalogMatcher
}

// NewRecommendationComposer creates a new composer.
func NewRecommendationComposer(extractor *IntentExtractor, patterns *PatternMatcher, catalog *CatalogMatcher) *RecommendationComposer {
	return &RecommendationComposer{
		extractor: extractor,
		patterns:  patterns,
		catalog:   catalog,
	}
}

// Compose builds the recommendation set for one order. It returns the set
// together with the intent extraction that fed it, so the caller can persist
// both; this service persists nothing itself. All three tiers are always
// present in BEST, BETTER, GOOD order, degraded to clinical-only guidance
// when the practice has no matching stock.
func (c *RecommendationComposer) Compose(ctx context.Context, orderID string, rx *entities.Prescription, rawNotes string, patientAge *int, occupation, ecpID string) (*entities.RecommendationSet, *entities.ClinicalIntentExtraction, error) {
	logger := observability.LoggerFromContext(ctx)

	extraction := c.extractor.Extract(orderID, rawNotes, patientAge, occupation)
	tags := extraction.TagNames()

	patterns, err := c.patterns.Match(ctx, tags, rx)
	if err != nil {
		return nil, nil, err
	}

	specs := c.tierSpecs(rx, tags)

	type tierResult struct {
		candidates []*entities.CatalogItem
		degraded   bool
	}
	results := make([]tierResult, len(specs))

	var wg sync.WaitGroup
	for i := range specs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tierCtx, cancel := context.WithTimeout(ctx, tierCatalogTimeout)
			defer cancel()
			candidates, err := c.catalog.FindCandidates(tierCtx, specs[i].spec, ecpID)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("order_id", orderID).
					Str("tier", specs[i].tier).
					Msg("tier catalog lookup degraded")
				results[i] = tierResult{degraded: true}
				return
			}
			results[i] = tierResult{candidates: candidates}
		}(i)
	}
	wg.Wait()

	patternRate, patternPresent := topPatternRate(patterns)
	intentSignal := scoreSignal{weight: intentScoreWeight, value: extraction.Confidence, present: true}

	tiers := make([]entities.RecommendationTier, len(specs))
	scoreSum := 0.0
	for i := range specs {
		tier := c.buildTier(specs[i], results[i].candidates, patterns, extraction, scoreSignal{
			weight:  patternScoreWeight,
			value:   patternRate,
			present: patternPresent,
		}, intentSignal)
		if tier.RetailPrice == nil {
			recordDegradedTier(ctx, specs[i].tier)
		}
		tiers[i] = tier
		scoreSum += tier.MatchScore
	}

	meanScore := scoreSum / float64(len(tiers))
	confidence := extraction.Confidence
	if meanScore < confidence {
		// The weakest signal caps overall confidence.
		confidence = meanScore
	}

	set := &entities.RecommendationSet{
		ID:                      uuid.New().String(),
		OrderID:                 orderID,
		Recommendations:         tiers,
		ClinicalConfidenceScore: confidence,
		AnalysisMetadata: entities.AnalysisMetadata{
			NLPConfidence:  extraction.Confidence,
			LIMSMatchCount: len(patterns),
			PatternMatches: scenarioKeys(patterns),
		},
		CreatedAt: time.Now().UTC(),
	}
	return set, extraction, nil
}

// tierSpec pairs a tier label with the lens characteristics it shops for.
type tierSpec struct {
	tier string
	spec entities.LensSpec
}

// tierSpecs derives the per-tier target specification: BEST carries the
// richest feature set steered by the extracted intent, BETTER a mid subset,
// GOOD only the hard clinical baseline.
func (c *RecommendationComposer) tierSpecs(rx *entities.Prescription, tags []string) []tierSpec {
	material := rx.LensMaterial
	if material == "" {
		material = "polycarbonate"
	}
	premiumMaterial := material
	if sphere := rx.MaxSphereMagnitude(); sphere != nil && *sphere >= 4.0 {
		premiumMaterial = "high_index"
	}

	features := featuresForTags(tags)
	bestFeatures := append([]string{}, features...)
	if rx.LensType == entities.LensTypeProgressive {
		bestFeatures = append(bestFeatures, "soft-design")
	}
	bestFeatures = append(bestFeatures, "digital-surfacing")

	betterFeatures := features
	if len(betterFeatures) > 2 {
		betterFeatures = betterFeatures[:2]
	}

	return []tierSpec{
		{tier: entities.TierBest, spec: entities.LensSpec{
			LensType:       rx.LensType,
			LensMaterial:   premiumMaterial,
			Coating:        "anti_reflective",
			DesignFeatures: bestFeatures,
		}},
		{tier: entities.TierBetter, spec: entities.LensSpec{
			LensType:       rx.LensType,
			LensMaterial:   material,
			Coating:        "anti_reflective",
			DesignFeatures: betterFeatures,
		}},
		{tier: entities.TierGood, spec: entities.LensSpec{
			LensType:     rx.LensType,
			LensMaterial: material,
		}},
	}
}

// featuresForTags maps extracted intent to catalog design features, in a
// fixed order so composition stays deterministic.
func featuresForTags(tags []string) []string {
	var features []string
	add := func(f string) {
		for _, existing := range features {
			if existing == f {
				return
			}
		}
		features = append(features, f)
	}
	for _, tag := range tags {
		switch tag {
		case entities.TagComputerHeavyUse, entities.TagNearWorkHeavy:
			add("blue-light-filter")
		case entities.TagGlareComplaint, entities.TagNightDrivingComplaint, entities.TagFrequentDriver:
			add("anti-glare")
		case entities.TagOutdoorLifestyle, entities.TagLightSensitivity:
			add("photochromic")
		}
	}
	return features
}

func (c *RecommendationComposer) buildTier(ts tierSpec, candidates []*entities.CatalogItem, patterns []*entities.ClinicalAnalyticPattern, extraction *entities.ClinicalIntentExtraction, patternSignal, intentSignal scoreSignal) entities.RecommendationTier {
	tier := entities.RecommendationTier{
		Tier:                   ts.tier,
		LifestyleJustification: lifestyleJustification(extraction),
		ClinicalContext:        clinicalContext(patterns, extraction.TagNames()),
	}

	var chosen *entities.CatalogItem
	chosenScore := 0.0
	for _, candidate := range candidates {
		score := weightedScore(patternSignal, intentSignal, scoreSignal{
			weight:  catalogScoreWeight,
			value:   FeatureOverlap(ts.spec, candidate),
			present: true,
		})
		if chosen == nil || score > chosenScore {
			chosen, chosenScore = candidate, score
			continue
		}
		if score == chosenScore {
			// Cost-conscious default: cheaper first, then deeper stock.
			if candidate.RetailPrice < chosen.RetailPrice ||
				(candidate.RetailPrice == chosen.RetailPrice && candidate.StockQuantity > chosen.StockQuantity) {
				chosen, chosenScore = candidate, score
			}
		}
	}

	if chosen != nil {
		price := chosen.RetailPrice
		tier.Lens = chosen.Name
		tier.Coating = chosen.Coating
		tier.SKU = chosen.SKU
		tier.RetailPrice = &price
		tier.MatchScore = chosenScore
		tier.ClinicalJustification = clinicalJustification(ts.spec, patterns)
		return tier
	}

	// Degradation: no in-stock candidate, the tier still ships with a
	// clinical-only justification.
	tier.Lens = describeSpec(ts.spec)
	tier.Coating = ts.spec.Coating
	tier.RetailPrice = nil
	tier.MatchScore = weightedScore(patternSignal, intentSignal)
	tier.ClinicalJustification = clinicalJustification(ts.spec, patterns) +
		"; no in-stock catalog match, clinical guidance only"
	return tier
}

func topPatternRate(patterns []*entities.ClinicalAnalyticPattern) (float64, bool) {
	if len(patterns) == 0 {
		return 0, false
	}
	return patterns[0].SuccessRate, true
}

func scenarioKeys(patterns []*entities.ClinicalAnalyticPattern) []string {
	keys := make([]string, len(patterns))
	for i, p := range patterns {
		keys[i] = p.ScenarioKey
	}
	return keys
}

func clinicalJustification(spec entities.LensSpec, patterns []*entities.ClinicalAnalyticPattern) string {
	base := fmt.Sprintf("%s %s meets the prescription's clinical requirements", spec.LensMaterial, spec.LensType)
	if len(patterns) == 0 {
		return base
	}
	top := patterns[0]
	return fmt.Sprintf("%s; %.0f%% historical success across %d similar orders (%s)",
		base, top.SuccessRate*100, top.SampleSize, top.ScenarioKey)
}

func lifestyleJustification(extraction *entities.ClinicalIntentExtraction) string {
	if len(extraction.PatientLifestyle) == 0 && len(extraction.PatientComplaints) == 0 {
		return ""
	}
	var parts []string
	if len(extraction.PatientLifestyle) > 0 {
		parts = append(parts, "lifestyle: "+strings.Join(extraction.PatientLifestyle, ", "))
	}
	if len(extraction.PatientComplaints) > 0 {
		parts = append(parts, "complaints: "+strings.Join(extraction.PatientComplaints, ", "))
	}
	return strings.Join(parts, "; ")
}

func clinicalContext(patterns []*entities.ClinicalAnalyticPattern, tags []string) []string {
	var context []string
	seen := make(map[string]struct{})
	for _, p := range patterns {
		for _, t := range p.BestForTags(tags) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			context = append(context, t)
		}
	}
	return context
}

func describeSpec(spec entities.LensSpec) string {
	parts := []string{spec.LensMaterial, spec.LensType}
	if len(spec.DesignFeatures) > 0 {
		parts = append(parts, "with "+strings.Join(spec.DesignFeatures, ", "))
	}
	return strings.Join(parts, " ")
}

func initDegradedTierCounter() {
	meter := otel.Meter("github.com/lenswise/dispense-advisor/recommendation_composer")
	counter, err := meter.Int64Counter(
		"recommendation.tier_degraded.count",
		metric.WithDescription("Count of recommendation tiers emitted without an in-stock catalog candidate"),
	)
	if err == nil {
		degradedTierCounter = counter
	}
}

func recordDegradedTier(ctx context.Context, tier string) {
	degradedTierOnce.Do(initDegradedTierCounter)
	if degradedTierCounter == nil {
		return
	}
	degradedTierCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("recommendation.tier", tier)),
	)
}
