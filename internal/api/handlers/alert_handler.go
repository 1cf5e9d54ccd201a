package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// AlertHandler handles prescription alert lifecycle requests
type AlertHandler struct {
	alertRepo repositories.AlertRepository
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertRepo repositories.AlertRepository) *AlertHandler {
	return &AlertHandler{alertRepo: alertRepo}
}

// ListOrderAlerts handles GET /api/orders/{orderId}/alerts
func (h *AlertHandler) ListOrderAlerts(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	if orderID == "" {
		respondWithError(w, http.StatusBadRequest, "order ID is required")
		return
	}

	alerts, err := h.alertRepo.ListByOrder(r.Context(), orderID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert handles GET /api/alerts/{id}
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		respondWithError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	alert, err := h.alertRepo.GetByID(r.Context(), alertID)
	if err != nil {
		respondWithAppError(w, err, "failed to get alert")
		return
	}

	respondWithJSON(w, http.StatusOK, alert)
}

// dismissAlertRequest is the request body for POST /api/alerts/{id}/dismiss
type dismissAlertRequest struct {
	DismissedBy string `json:"dismissed_by"`
}

// DismissAlert handles POST /api/alerts/{id}/dismiss
func (h *AlertHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		respondWithError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	var req dismissAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DismissedBy == "" {
		respondWithError(w, http.StatusBadRequest, "dismissed_by is required")
		return
	}

	if err := h.alertRepo.Dismiss(r.Context(), alertID, req.DismissedBy); err != nil {
		respondWithAppError(w, err, "failed to dismiss alert")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

// alertActionRequest is the request body for POST /api/alerts/{id}/action
type alertActionRequest struct {
	Action string `json:"action"`
}

// RecordAction handles POST /api/alerts/{id}/action
func (h *AlertHandler) RecordAction(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		respondWithError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	var req alertActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		respondWithError(w, http.StatusBadRequest, "action is required")
		return
	}

	if err := h.alertRepo.RecordAction(r.Context(), alertID, req.Action); err != nil {
		respondWithAppError(w, err, "failed to record alert action")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// respondWithAppError maps application error types to HTTP statuses.
func respondWithAppError(w http.ResponseWriter, err error, fallback string) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		switch appErr.Type {
		case apperrors.ErrorTypeNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
			return
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
			return
		case apperrors.ErrorTypeUnavailable:
			respondWithError(w, http.StatusServiceUnavailable, appErr.Message)
			return
		}
	}
	respondWithError(w, http.StatusInternalServerError, fallback)
}
