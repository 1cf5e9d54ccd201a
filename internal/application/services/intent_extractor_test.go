package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

func TestExtract_ComputerUseScenario(t *testing.T) {
	extractor := NewIntentExtractor()

	extraction := extractor.Extract(
		"order-1",
		"Patient works on a computer 10 hours a day and complains of eye strain and headaches.",
		nil,
		"",
	)

	require.True(t, extraction.HasTag(entities.TagComputerHeavyUse))
	require.True(t, extraction.HasTag(entities.TagEyeStrainComplaint))
	require.True(t, extraction.HasTag(entities.TagHeadacheComplaint))

	conf := extraction.TagConfidence(entities.TagComputerHeavyUse)
	require.NotNil(t, conf)
	assert.GreaterOrEqual(t, *conf, 0.6)

	assert.Contains(t, extraction.PatientComplaints, "eye strain")
	assert.Contains(t, extraction.PatientComplaints, "headaches")
	assert.Contains(t, extraction.PatientLifestyle, "extended screen time")
	assert.NotEqual(t, sparseNotesSummary, extraction.ClinicalSummary)
}

func TestExtract_SparseNotesLowConfidence(t *testing.T) {
	extractor := NewIntentExtractor()

	for _, notes := range []string{"", "   ", "pt fine", "see previous rx"} {
		extraction := extractor.Extract("order-2", notes, nil, "")
		assert.Empty(t, extraction.IntentTags, "notes: %q", notes)
		assert.Equal(t, sparseNotesConfidence, extraction.Confidence, "notes: %q", notes)
		assert.Equal(t, sparseNotesSummary, extraction.ClinicalSummary, "notes: %q", notes)
	}
}

func TestExtract_ConfidenceNeverExceedsCeiling(t *testing.T) {
	extractor := NewIntentExtractor()

	// Every computer rule plus the occupation rule fires; the compounded
	// confidence must still respect the ceiling.
	extraction := extractor.Extract(
		"order-3",
		"Works at a computer screen for long hours, heavy laptop use.",
		nil,
		"software developer",
	)

	conf := extraction.TagConfidence(entities.TagComputerHeavyUse)
	require.NotNil(t, conf)
	assert.LessOrEqual(t, *conf, maxTagConfidence)
	assert.Greater(t, *conf, 0.7, "compounded evidence should exceed any single rule")
}

func TestExtract_RepeatEvidenceCompounds(t *testing.T) {
	extractor := NewIntentExtractor()

	single := extractor.Extract("order-4", "complains of glare", nil, "")
	double := extractor.Extract("order-4", "complains of glare and halos around lights", nil, "")

	singleConf := single.TagConfidence(entities.TagGlareComplaint)
	doubleConf := double.TagConfidence(entities.TagGlareComplaint)
	require.NotNil(t, singleConf)
	require.NotNil(t, doubleConf)
	assert.Greater(t, *doubleConf, *singleConf)

	// A tag the notes never evidenced stays nil rather than zero.
	assert.Nil(t, single.TagConfidence(entities.TagOutdoorLifestyle))
}

func TestExtract_PriorNonAdaptFlag(t *testing.T) {
	extractor := NewIntentExtractor()

	extraction := extractor.Extract("order-5", "Patient could not adapt to previous progressives.", nil, "")
	assert.Contains(t, extraction.ClinicalFlags, entities.FlagPriorNonAdapt)
}

func TestExtract_PresbyopicAgeBand(t *testing.T) {
	extractor := NewIntentExtractor()

	young := extractor.Extract("order-6", "reading difficulty", intPtr(30), "")
	assert.NotContains(t, young.ClinicalFlags, entities.FlagPresbyopicAgeBand)

	older := extractor.Extract("order-6", "reading difficulty", intPtr(52), "")
	assert.Contains(t, older.ClinicalFlags, entities.FlagPresbyopicAgeBand)
}

func TestExtract_OccupationTagsLifestyle(t *testing.T) {
	extractor := NewIntentExtractor()

	extraction := extractor.Extract("order-7", "", nil, "Delivery Driver")
	require.True(t, extraction.HasTag(entities.TagFrequentDriver))
	assert.Contains(t, extraction.PatientLifestyle, "professional driving")
}

func TestExtract_Deterministic(t *testing.T) {
	extractor := NewIntentExtractor()
	notes := "night driving trouble, glare from headlights, works outdoors"

	first := extractor.Extract("order-8", notes, intPtr(48), "farmer")
	second := extractor.Extract("order-8", notes, intPtr(48), "farmer")

	assert.Equal(t, first.IntentTags, second.IntentTags)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.ClinicalSummary, second.ClinicalSummary)
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"driving":   "driv",
		"headaches": "headache",
		"hours":     "hour",
		"glare":     "glare",
		"sports":    "sport",
	}
	for in, want := range cases {
		assert.Equal(t, want, stem(in), "stem(%q)", in)
	}
}
