package entities

import "time"

// Intent tags emitted by the rule-based extractor.
const (
	TagComputerHeavyUse      = "computer_heavy_use"
	TagNightDrivingComplaint = "night_driving_complaint"
	TagGlareComplaint        = "glare_complaint"
	TagEyeStrainComplaint    = "eye_strain_complaint"
	TagHeadacheComplaint     = "headache_complaint"
	TagNearWorkHeavy         = "near_work_heavy"
	TagOutdoorLifestyle      = "outdoor_lifestyle"
	TagFrequentDriver        = "frequent_driver"
	TagLightSensitivity      = "light_sensitivity"
)

// Clinical flags raised alongside intent tags.
const (
	FlagPriorNonAdapt     = "prior_nonadapt"
	FlagPresbyopicAgeBand = "presbyopic_age_band"
)

// IntentTag pairs an extracted clinical intent with the extractor's
// confidence in it.
type IntentTag struct {
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
}

// ClinicalIntentExtraction is the structured interpretation of an order's
// free-text clinical notes. Records are immutable once created; re-analysis
// creates a new record referencing the same order.
type ClinicalIntentExtraction struct {
	ID                string      `json:"id" db:"id"`
	OrderID           string      `json:"order_id" db:"order_id"`
	IntentTags        []IntentTag `json:"intent_tags" db:"-"`
	PatientLifestyle  []string    `json:"patient_lifestyle,omitempty" db:"-"`
	PatientComplaints []string    `json:"patient_complaints,omitempty" db:"-"`
	ClinicalFlags     []string    `json:"clinical_flags,omitempty" db:"-"`
	ClinicalSummary   string      `json:"clinical_summary" db:"clinical_summary"`
	Confidence        float64     `json:"confidence" db:"confidence"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}

// TagNames returns the bare tag identifiers, in emission order.
func (e *ClinicalIntentExtraction) TagNames() []string {
	names := make([]string, len(e.IntentTags))
	for i, t := range e.IntentTags {
		names[i] = t.Tag
	}
	return names
}

// HasTag reports whether the extraction carries the given tag.
func (e *ClinicalIntentExtraction) HasTag(tag string) bool {
	for _, t := range e.IntentTags {
		if t.Tag == tag {
			return true
		}
	}
	return false
}

// TagConfidence returns the confidence for a tag, or nil when the tag was
// not extracted. Nil keeps "tag absent" distinguishable from a zero
// confidence.
func (e *ClinicalIntentExtraction) TagConfidence(tag string) *float64 {
	for _, t := range e.IntentTags {
		if t.Tag == tag {
			return &t.Confidence
		}
	}
	return nil
}
