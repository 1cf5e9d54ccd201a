package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/lenswise/dispense-advisor/internal/application/services"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/providers"
)

// AnalyticsHandler handles outcome analytics HTTP requests
type AnalyticsHandler struct {
	aggregator *services.AnalyticsAggregator
	eventBus   providers.EventBus
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(aggregator *services.AnalyticsAggregator, eventBus providers.EventBus) *AnalyticsHandler {
	return &AnalyticsHandler{
		aggregator: aggregator,
		eventBus:   eventBus,
	}
}

// GetAnalytic handles GET /api/analytics/{lensType}/{material}/{frameType}
func (h *AnalyticsHandler) GetAnalytic(w http.ResponseWriter, r *http.Request) {
	lensType := r.PathValue("lensType")
	material := r.PathValue("material")
	frameType := r.PathValue("frameType")
	if lensType == "" || material == "" || frameType == "" {
		respondWithError(w, http.StatusBadRequest, "lens type, material and frame type are required")
		return
	}

	analytic, err := h.aggregator.Lookup(r.Context(), lensType, material, frameType)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to look up analytics")
		return
	}
	if analytic == nil {
		respondWithError(w, http.StatusNotFound, "no outcomes recorded for this combination")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"lens_type":           analytic.LensType,
		"lens_material":       analytic.LensMaterial,
		"frame_type":          analytic.FrameType,
		"total_orders":        analytic.TotalOrders,
		"non_adapt_rate":      analytic.NonAdaptRate(),
		"remake_rate":         analytic.RemakeRate(),
		"average_remake_days": analytic.AverageRemakeDays(),
		"last_updated":        analytic.LastUpdated,
	})
}

// reportOutcomeRequest is the request body for POST /api/outcomes
type reportOutcomeRequest struct {
	OutcomeID    string `json:"outcome_id,omitempty"`
	LensType     string `json:"lens_type"`
	LensMaterial string `json:"lens_material"`
	FrameType    string `json:"frame_type"`
	NonAdapt     bool   `json:"non_adapt"`
	Remade       bool   `json:"remade"`
	RemakeDays   *int   `json:"remake_days,omitempty"`
}

// ReportOutcome handles POST /api/outcomes. The outcome is applied to the
// aggregate synchronously and then republished on the event bus for any
// downstream consumers. Re-posting the same outcome_id is a no-op.
func (h *AnalyticsHandler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	var req reportOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LensType == "" || req.LensMaterial == "" || req.FrameType == "" {
		respondWithError(w, http.StatusBadRequest, "lens_type, lens_material and frame_type are required")
		return
	}

	event := &entities.OutcomeEvent{
		OutcomeID:    req.OutcomeID,
		LensType:     req.LensType,
		LensMaterial: req.LensMaterial,
		FrameType:    req.FrameType,
		NonAdapt:     req.NonAdapt,
		Remade:       req.Remade,
		RemakeDays:   req.RemakeDays,
		ReportedAt:   time.Now().UTC(),
	}
	if event.OutcomeID == "" {
		event.OutcomeID = uuid.New().String()
	}

	if err := h.aggregator.RecordOutcome(r.Context(), event); err != nil {
		log.Error().Err(err).Str("outcome_id", event.OutcomeID).Msg("Failed to record outcome")
		respondWithError(w, http.StatusInternalServerError, "failed to record outcome")
		return
	}

	// Best effort; the aggregate is already updated.
	if h.eventBus != nil {
		if err := h.eventBus.Publish(r.Context(), providers.EventChannelOrderOutcomes, event); err != nil {
			log.Warn().Err(err).Str("outcome_id", event.OutcomeID).Msg("Failed to publish outcome event")
		}
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"outcome_id": event.OutcomeID,
		"status":     "recorded",
	})
}
