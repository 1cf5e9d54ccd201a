package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// fakeAlertRepo is an in-memory AlertRepository for handler tests.
type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*entities.PrescriptionAlert
}

func newFakeAlertRepo(alerts ...*entities.PrescriptionAlert) *fakeAlertRepo {
	repo := &fakeAlertRepo{alerts: make(map[string]*entities.PrescriptionAlert)}
	for _, a := range alerts {
		repo.alerts[a.ID] = a
	}
	return repo
}

func (r *fakeAlertRepo) Create(ctx context.Context, alert *entities.PrescriptionAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[alert.ID] = alert
	return nil
}

func (r *fakeAlertRepo) GetByID(ctx context.Context, id string) (*entities.PrescriptionAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.alerts[id]; ok {
		return a, nil
	}
	return nil, apperrors.NewNotFoundError("alert not found")
}

func (r *fakeAlertRepo) ListByOrder(ctx context.Context, orderID string) ([]*entities.PrescriptionAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.PrescriptionAlert
	for _, a := range r.alerts {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) Dismiss(ctx context.Context, id, dismissedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return apperrors.NewNotFoundError("alert not found")
	}
	now := time.Now().UTC()
	a.DismissedAt = &now
	a.DismissedBy = dismissedBy
	return nil
}

func (r *fakeAlertRepo) RecordAction(ctx context.Context, id, action string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return apperrors.NewNotFoundError("alert not found")
	}
	a.ActionTaken = action
	return nil
}

func testAlert(id, orderID string) *entities.PrescriptionAlert {
	return &entities.PrescriptionAlert{
		ID:                     id,
		OrderID:                orderID,
		AlertType:              entities.AlertHighWrap,
		Severity:               entities.SeverityWarning,
		RiskScore:              0.43,
		HistoricalNonAdaptRate: 0.25,
		Explanation:            "frame wrap angle above 12 degrees",
		CreatedAt:              time.Now().UTC(),
	}
}

func TestListOrderAlerts(t *testing.T) {
	repo := newFakeAlertRepo(testAlert("a-1", "order-1"), testAlert("a-2", "order-1"), testAlert("a-3", "order-9"))
	handler := NewAlertHandler(repo)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{orderId}/alerts", handler.ListOrderAlerts)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/order-1/alerts", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count  int                           `json:"count"`
		Alerts []*entities.PrescriptionAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestDismissAlert(t *testing.T) {
	repo := newFakeAlertRepo(testAlert("a-1", "order-1"))
	handler := NewAlertHandler(repo)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/alerts/{id}/dismiss", handler.DismissAlert)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/a-1/dismiss", strings.NewReader(`{"dismissed_by":"dispenser-7"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	dismissed := repo.alerts["a-1"]
	assert.NotNil(t, dismissed.DismissedAt)
	assert.Equal(t, "dispenser-7", dismissed.DismissedBy)
}

func TestDismissAlert_RequiresDismissedBy(t *testing.T) {
	handler := NewAlertHandler(newFakeAlertRepo(testAlert("a-1", "order-1")))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/alerts/{id}/dismiss", handler.DismissAlert)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/a-1/dismiss", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDismissAlert_UnknownAlert(t *testing.T) {
	handler := NewAlertHandler(newFakeAlertRepo())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/alerts/{id}/dismiss", handler.DismissAlert)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/missing/dismiss", strings.NewReader(`{"dismissed_by":"d"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordAction(t *testing.T) {
	repo := newFakeAlertRepo(testAlert("a-1", "order-1"))
	handler := NewAlertHandler(repo)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/alerts/{id}/action", handler.RecordAction)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/a-1/action", strings.NewReader(`{"action":"switched_to_single_vision"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "switched_to_single_vision", repo.alerts["a-1"].ActionTaken)
}
