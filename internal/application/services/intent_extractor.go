package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

const (
	// maxTagConfidence is the ceiling a tag can reach from text matching
	// alone; text never proves intent outright.
	maxTagConfidence = 0.95

	// sparseNotesConfidence is the extraction confidence reported when no
	// rule matched at all.
	sparseNotesConfidence = 0.3

	sparseNotesSummary = "insufficient clinical context: notes too sparse to classify"

	presbyopicAgeThreshold = 45
)

// intentRule maps keyword/phrase patterns in clinical notes to an intent tag.
// All keywords must be present (stemmed, case-insensitive); phrases match as
// substrings of the normalized text. A rule may also contribute lifestyle,
// complaint, or clinical-flag context.
type intentRule struct {
	tag        string
	confidence float64
	keywords   []string
	phrases    []string
	lifestyle  string
	complaint  string
	flag       string
}

var intentRules = []intentRule{
	{tag: entities.TagComputerHeavyUse, confidence: 0.7, keywords: []string{"computer", "hours"}, lifestyle: "extended screen time"},
	{tag: entities.TagComputerHeavyUse, confidence: 0.65, keywords: []string{"screen", "hours"}, lifestyle: "extended screen time"},
	{tag: entities.TagComputerHeavyUse, confidence: 0.5, keywords: []string{"laptop"}, lifestyle: "laptop work"},
	{tag: entities.TagNightDrivingComplaint, confidence: 0.85, phrases: []string{"night driving", "driving at night", "drives at night"}, complaint: "difficulty driving at night"},
	{tag: entities.TagGlareComplaint, confidence: 0.85, keywords: []string{"glare"}, complaint: "glare"},
	{tag: entities.TagGlareComplaint, confidence: 0.7, keywords: []string{"halos"}, complaint: "halos around lights"},
	{tag: entities.TagEyeStrainComplaint, confidence: 0.75, phrases: []string{"eye strain", "eyestrain"}, complaint: "eye strain"},
	{tag: entities.TagEyeStrainComplaint, confidence: 0.6, keywords: []string{"fatigue"}, complaint: "visual fatigue"},
	{tag: entities.TagHeadacheComplaint, confidence: 0.7, keywords: []string{"headache"}, complaint: "headaches"},
	{tag: entities.TagNearWorkHeavy, confidence: 0.6, keywords: []string{"reading"}, lifestyle: "frequent reading"},
	{tag: entities.TagNearWorkHeavy, confidence: 0.6, phrases: []string{"close work", "near work"}, lifestyle: "sustained near work"},
	{tag: entities.TagOutdoorLifestyle, confidence: 0.65, keywords: []string{"outdoor"}, lifestyle: "outdoor activity"},
	{tag: entities.TagOutdoorLifestyle, confidence: 0.6, keywords: []string{"sports"}, lifestyle: "sports"},
	{tag: entities.TagOutdoorLifestyle, confidence: 0.6, keywords: []string{"golf"}, lifestyle: "golf"},
	{tag: entities.TagLightSensitivity, confidence: 0.7, phrases: []string{"light sensitivity", "sensitive to light"}, complaint: "light sensitivity"},
	{tag: entities.TagLightSensitivity, confidence: 0.7, keywords: []string{"photophobia"}, complaint: "photophobia"},
	{tag: entities.TagFrequentDriver, confidence: 0.6, phrases: []string{"long commute", "drives a lot"}, lifestyle: "frequent driving"},
	{confidence: 0.8, phrases: []string{"could not adapt", "couldn't adapt", "returned previous", "failed to adapt"}, flag: entities.FlagPriorNonAdapt},
}

// occupationRules tag lifestyle intent from the structured occupation field.
type occupationRule struct {
	match      []string
	tag        string
	confidence float64
	lifestyle  string
}

var occupationRules = []occupationRule{
	{match: []string{"developer", "programmer", "accountant", "analyst", "office"}, tag: entities.TagComputerHeavyUse, confidence: 0.5, lifestyle: "desk-based occupation"},
	{match: []string{"driver", "courier", "chauffeur"}, tag: entities.TagFrequentDriver, confidence: 0.65, lifestyle: "professional driving"},
	{match: []string{"farmer", "construction", "landscaper", "fisherman"}, tag: entities.TagOutdoorLifestyle, confidence: 0.6, lifestyle: "outdoor occupation"},
}

var notesNonAlphaNum = regexp.MustCompile(`[^\p{L}\p{N}\s']`)

// IntentExtractor parses raw clinical-note text into structured intent tags,
// lifestyle context, and complaints. It is stateless and safe for unbounded
// concurrent use; the same inputs always produce the same extraction.
type IntentExtractor struct{}

// NewIntentExtractor creates a new extractor.
func NewIntentExtractor() *IntentExtractor {
	return &IntentExtractor{}
}

// Extract runs the rule table over the notes and optional patient context.
// It never fails: notes that match nothing yield a low-confidence extraction
// with an explicit "insufficient clinical context" summary, surfaced rather
// than hidden.
func (e *IntentExtractor) Extract(orderID, rawNotes string, patientAge *int, occupation string) *entities.ClinicalIntentExtraction {
	extraction := &entities.ClinicalIntentExtraction{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
	}

	normalized := normalizeNotes(rawNotes)
	stems := stemSet(normalized)

	tagConfidence := make(map[string]float64)
	var tagOrder []string
	addTag := func(tag string, conf float64) {
		if _, seen := tagConfidence[tag]; !seen {
			tagOrder = append(tagOrder, tag)
		}
		// Repeat evidence compounds toward, but never reaches, certainty.
		combined := 1 - (1-tagConfidence[tag])*(1-conf)
		if combined > maxTagConfidence {
			combined = maxTagConfidence
		}
		tagConfidence[tag] = combined
	}
	addUnique := func(list []string, v string) []string {
		for _, existing := range list {
			if existing == v {
				return list
			}
		}
		return append(list, v)
	}

	for _, rule := range intentRules {
		if !rule.matches(normalized, stems) {
			continue
		}
		if rule.flag != "" {
			extraction.ClinicalFlags = addUnique(extraction.ClinicalFlags, rule.flag)
		}
		if rule.lifestyle != "" {
			extraction.PatientLifestyle = addUnique(extraction.PatientLifestyle, rule.lifestyle)
		}
		if rule.complaint != "" {
			extraction.PatientComplaints = addUnique(extraction.PatientComplaints, rule.complaint)
		}
		if rule.tag != "" {
			addTag(rule.tag, rule.confidence)
		}
	}

	if occupation != "" {
		occ := strings.ToLower(occupation)
		for _, rule := range occupationRules {
			for _, m := range rule.match {
				if strings.Contains(occ, m) {
					addTag(rule.tag, rule.confidence)
					extraction.PatientLifestyle = addUnique(extraction.PatientLifestyle, rule.lifestyle)
					break
				}
			}
		}
	}

	if patientAge != nil && *patientAge >= presbyopicAgeThreshold {
		extraction.ClinicalFlags = addUnique(extraction.ClinicalFlags, entities.FlagPresbyopicAgeBand)
	}

	for _, tag := range tagOrder {
		extraction.IntentTags = append(extraction.IntentTags, entities.IntentTag{
			Tag:        tag,
			Confidence: tagConfidence[tag],
		})
	}

	if len(extraction.IntentTags) == 0 {
		extraction.Confidence = sparseNotesConfidence
		extraction.ClinicalSummary = sparseNotesSummary
		return extraction
	}

	sum := 0.0
	for _, t := range extraction.IntentTags {
		sum += t.Confidence
	}
	extraction.Confidence = sum / float64(len(extraction.IntentTags))
	extraction.ClinicalSummary = buildSummary(extraction.IntentTags)
	return extraction
}

func (r *intentRule) matches(normalized string, stems map[string]struct{}) bool {
	for _, phrase := range r.phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	if len(r.keywords) == 0 {
		return false
	}
	for _, kw := range r.keywords {
		if _, ok := stems[stem(kw)]; !ok {
			return false
		}
	}
	return true
}

func normalizeNotes(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = notesNonAlphaNum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// stem applies a light suffix strip, enough to line up "driving"/"drives"
// with "drive" and "headaches" with "headache" without a stemmer dependency.
func stem(word string) string {
	for _, suffix := range []string{"ing", "ed", "s"} {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 3 {
			return strings.TrimSuffix(word, suffix)
		}
	}
	return word
}

func stemSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[stem(w)] = struct{}{}
	}
	return set
}

func buildSummary(tags []entities.IntentTag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = fmt.Sprintf("%s (%.2f)", t.Tag, t.Confidence)
	}
	sort.Strings(parts)
	return "clinical intent: " + strings.Join(parts, ", ")
}
