package entities

import "time"

// ClinicalContext lists the intent tags a pattern is known to serve well or
// poorly for.
type ClinicalContext struct {
	BestFor  []string `json:"best_for"`
	WorstFor []string `json:"worst_for"`
}

// ClinicalAnalyticPattern is a precomputed outcome statistic for a bucketed
// clinical scenario. Rows are read-only from this service's perspective and
// refreshed by an external batch process.
type ClinicalAnalyticPattern struct {
	ID              string             `json:"id" db:"id"`
	ScenarioKey     string             `json:"scenario_key" db:"scenario_key"`
	SuccessRate     float64            `json:"success_rate" db:"success_rate"`
	NonAdaptRate    float64            `json:"non_adapt_rate" db:"non_adapt_rate"`
	RemakeRate      float64            `json:"remake_rate" db:"remake_rate"`
	SampleSize      int                `json:"sample_size" db:"sample_size"`
	PatternInsights map[string]float64 `json:"pattern_insights,omitempty" db:"-"`
	ClinicalContext ClinicalContext    `json:"clinical_context" db:"-"`
	RefreshedAt     time.Time          `json:"refreshed_at" db:"refreshed_at"`
}

// MatchesTags reports whether any of the supplied intent tags appears in the
// pattern's bestFor or worstFor context.
func (p *ClinicalAnalyticPattern) MatchesTags(tags []string) bool {
	if len(tags) == 0 {
		return false
	}
	known := make(map[string]struct{}, len(p.ClinicalContext.BestFor)+len(p.ClinicalContext.WorstFor))
	for _, t := range p.ClinicalContext.BestFor {
		known[t] = struct{}{}
	}
	for _, t := range p.ClinicalContext.WorstFor {
		known[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := known[t]; ok {
			return true
		}
	}
	return false
}

// BestForTags returns the bestFor entries that intersect the supplied tags.
func (p *ClinicalAnalyticPattern) BestForTags(tags []string) []string {
	supplied := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		supplied[t] = struct{}{}
	}
	var out []string
	for _, t := range p.ClinicalContext.BestFor {
		if _, ok := supplied[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
