package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/lenswise/dispense-advisor/internal/application/services"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
)

// AnalysisHandler handles order analysis HTTP requests
type AnalysisHandler struct {
	composer           *services.RecommendationComposer
	riskScorer         *services.RiskScorer
	extractionRepo     repositories.ExtractionRepository
	recommendationRepo repositories.RecommendationRepository
	alertRepo          repositories.AlertRepository
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(
	composer *services.RecommendationComposer,
	riskScorer *services.RiskScorer,
	extractionRepo repositories.ExtractionRepository,
	recommendationRepo repositories.RecommendationRepository,
	alertRepo repositories.AlertRepository,
) *AnalysisHandler {
	return &AnalysisHandler{
		composer:           composer,
		riskScorer:         riskScorer,
		extractionRepo:     extractionRepo,
		recommendationRepo: recommendationRepo,
		alertRepo:          alertRepo,
	}
}

// analyzeOrderRequest is the request body for POST /api/orders/analyze
type analyzeOrderRequest struct {
	OrderID      string                 `json:"order_id"`
	ECPID        string                 `json:"ecp_id"`
	Prescription *entities.Prescription `json:"prescription"`
	RawNotes     string                 `json:"raw_notes"`
	PatientAge   *int                   `json:"patient_age,omitempty"`
	Occupation   string                 `json:"occupation,omitempty"`
}

func (r *analyzeOrderRequest) validate() string {
	if r.OrderID == "" {
		return "order_id is required"
	}
	if r.ECPID == "" {
		return "ecp_id is required"
	}
	if r.Prescription == nil {
		return "prescription is required"
	}
	if r.Prescription.LensType == "" || r.Prescription.LensMaterial == "" || r.Prescription.FrameType == "" {
		return "prescription lens_type, lens_material and frame_type are required"
	}
	return ""
}

// AnalyzeOrder handles POST /api/orders/analyze. It runs the full pipeline:
// intent extraction, risk scoring, pattern and catalog matching, and tier
// composition. The composed set supersedes any previous set for the order.
func (h *AnalysisHandler) AnalyzeOrder(w http.ResponseWriter, r *http.Request) {
	var req analyzeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()

	set, extraction, err := h.composer.Compose(ctx, req.OrderID, req.Prescription, req.RawNotes, req.PatientAge, req.Occupation, req.ECPID)
	if err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to compose recommendations")
		respondWithError(w, http.StatusInternalServerError, "failed to analyze order")
		return
	}

	alerts, err := h.riskScorer.Score(ctx, req.OrderID, req.Prescription)
	if err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to score prescription risk")
		respondWithError(w, http.StatusInternalServerError, "failed to analyze order")
		return
	}

	// Persistence failures degrade the response rather than losing the
	// analysis the caller already paid for.
	if err := h.extractionRepo.Create(ctx, extraction); err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to persist intent extraction")
	}
	if err := h.recommendationRepo.Create(ctx, set); err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to persist recommendation set")
	}
	for _, alert := range alerts {
		if err := h.alertRepo.Create(ctx, alert); err != nil {
			log.Error().Err(err).Str("order_id", req.OrderID).Str("alert_type", alert.AlertType).Msg("Failed to persist alert")
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":                  set.OrderID,
		"recommendations":           set.Recommendations,
		"clinical_confidence_score": set.ClinicalConfidenceScore,
		"analysis_metadata":         set.AnalysisMetadata,
		"extraction":                extraction,
		"alerts":                    alerts,
	})
}

// riskCheckRequest is the request body for POST /api/orders/risk
type riskCheckRequest struct {
	OrderID      string                 `json:"order_id"`
	Prescription *entities.Prescription `json:"prescription"`
}

// CheckRisk handles POST /api/orders/risk. It runs risk scoring alone, for
// the point-of-sale flow that wants alerts before the full analysis.
func (h *AnalysisHandler) CheckRisk(w http.ResponseWriter, r *http.Request) {
	var req riskCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" {
		respondWithError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	if req.Prescription == nil || req.Prescription.LensType == "" || req.Prescription.FrameType == "" {
		respondWithError(w, http.StatusBadRequest, "prescription with lens_type and frame_type is required")
		return
	}

	alerts, err := h.riskScorer.Score(r.Context(), req.OrderID, req.Prescription)
	if err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to score prescription risk")
		respondWithError(w, http.StatusInternalServerError, "failed to check risk")
		return
	}

	for _, alert := range alerts {
		if err := h.alertRepo.Create(r.Context(), alert); err != nil {
			log.Error().Err(err).Str("order_id", req.OrderID).Str("alert_type", alert.AlertType).Msg("Failed to persist alert")
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": req.OrderID,
		"alerts":   alerts,
		"count":    len(alerts),
	})
}

// GetRecommendations handles GET /api/orders/{orderId}/recommendations
func (h *AnalysisHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	if orderID == "" {
		respondWithError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	set, err := h.recommendationRepo.GetLatestByOrder(r.Context(), orderID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get recommendations")
		return
	}
	if set == nil {
		respondWithError(w, http.StatusNotFound, "order has not been analyzed")
		return
	}

	respondWithJSON(w, http.StatusOK, set)
}

// GetExtraction handles GET /api/orders/{orderId}/extraction
func (h *AnalysisHandler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	if orderID == "" {
		respondWithError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	extraction, err := h.extractionRepo.GetLatestByOrder(r.Context(), orderID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get extraction")
		return
	}
	if extraction == nil {
		respondWithError(w, http.StatusNotFound, "order has not been analyzed")
		return
	}

	respondWithJSON(w, http.StatusOK, extraction)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
