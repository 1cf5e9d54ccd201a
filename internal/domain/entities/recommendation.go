package entities

import "time"

// Recommendation tier labels, in ranked output order.
const (
	TierBest   = "BEST"
	TierBetter = "BETTER"
	TierGood   = "GOOD"
)

// RecommendationTier is one ranked lens/coating recommendation. RetailPrice
// is nil when the practice had no in-stock candidate for the tier and the
// tier degraded to clinical-only guidance.
type RecommendationTier struct {
	Tier                   string   `json:"tier"`
	Lens                   string   `json:"lens"`
	Coating                string   `json:"coating,omitempty"`
	SKU                    string   `json:"sku,omitempty"`
	RetailPrice            *float64 `json:"retail_price"`
	MatchScore             float64  `json:"match_score"`
	ClinicalJustification  string   `json:"clinical_justification"`
	LifestyleJustification string   `json:"lifestyle_justification,omitempty"`
	ClinicalContext        []string `json:"clinical_context,omitempty"`
}

// AnalysisMetadata carries the traceability signals behind a recommendation
// set: the extractor's overall confidence, and the pattern store's match
// count and scenario keys passed through verbatim.
type AnalysisMetadata struct {
	NLPConfidence  float64  `json:"nlp_confidence"`
	LIMSMatchCount int      `json:"lims_match_count"`
	PatternMatches []string `json:"pattern_matches,omitempty"`
}

// RecommendationSet is the composed output for one order analysis. A set
// always holds exactly three tiers in BEST, BETTER, GOOD order. Re-analysis
// supersedes the previous set rather than merging into it.
type RecommendationSet struct {
	ID                      string               `json:"id" db:"id"`
	OrderID                 string               `json:"order_id" db:"order_id"`
	Recommendations         []RecommendationTier `json:"recommendations" db:"-"`
	ClinicalConfidenceScore float64              `json:"clinical_confidence_score" db:"clinical_confidence_score"`
	AnalysisMetadata        AnalysisMetadata     `json:"analysis_metadata" db:"-"`
	CreatedAt               time.Time            `json:"created_at" db:"created_at"`
}
