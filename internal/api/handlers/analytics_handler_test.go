package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lenswise/dispense-advisor/internal/application/services"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// fakeAnalyticsRepo is an in-memory AnalyticsRepository for handler tests.
type fakeAnalyticsRepo struct {
	mu        sync.Mutex
	analytics map[string]*entities.LensFrameAnalytic
	processed map[string]struct{}
}

func newFakeAnalyticsRepo() *fakeAnalyticsRepo {
	return &fakeAnalyticsRepo{
		analytics: make(map[string]*entities.LensFrameAnalytic),
		processed: make(map[string]struct{}),
	}
}

func key(lensType, lensMaterial, frameType string) string {
	return lensType + "|" + lensMaterial + "|" + frameType
}

func (r *fakeAnalyticsRepo) ApplyOutcome(ctx context.Context, event *entities.OutcomeEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.processed[event.OutcomeID]; seen {
		return false, nil
	}
	r.processed[event.OutcomeID] = struct{}{}

	k := key(event.LensType, event.LensMaterial, event.FrameType)
	a, ok := r.analytics[k]
	if !ok {
		a = &entities.LensFrameAnalytic{
			LensType:     event.LensType,
			LensMaterial: event.LensMaterial,
			FrameType:    event.FrameType,
		}
		r.analytics[k] = a
	}
	a.TotalOrders++
	if event.NonAdapt {
		a.NonAdaptCount++
	}
	if event.Remade {
		a.RemakeCount++
		if event.RemakeDays != nil {
			a.RemakeDaysTotal += *event.RemakeDays
			a.RemakeDaysCount++
		}
	}
	return true, nil
}

func (r *fakeAnalyticsRepo) Lookup(ctx context.Context, lensType, lensMaterial, frameType string) (*entities.LensFrameAnalytic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.analytics[key(lensType, lensMaterial, frameType)]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeAnalyticsRepo) ListByFrameType(ctx context.Context, frameType string) ([]*entities.LensFrameAnalytic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.LensFrameAnalytic
	for _, a := range r.analytics {
		if a.FrameType == frameType {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func analyticsMux(repo *fakeAnalyticsRepo) *http.ServeMux {
	handler := NewAnalyticsHandler(services.NewAnalyticsAggregator(repo, nil), nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/analytics/{lensType}/{material}/{frameType}", handler.GetAnalytic)
	mux.HandleFunc("POST /api/outcomes", handler.ReportOutcome)
	return mux
}

func TestReportOutcomeThenGetAnalytic(t *testing.T) {
	mux := analyticsMux(newFakeAnalyticsRepo())

	outcomes := []string{
		`{"outcome_id":"o-1","lens_type":"progressive","lens_material":"polycarbonate","frame_type":"wrap","non_adapt":true}`,
		`{"outcome_id":"o-2","lens_type":"progressive","lens_material":"polycarbonate","frame_type":"wrap"}`,
		`{"outcome_id":"o-3","lens_type":"progressive","lens_material":"polycarbonate","frame_type":"wrap","remade":true}`,
		`{"outcome_id":"o-4","lens_type":"progressive","lens_material":"polycarbonate","frame_type":"wrap"}`,
	}
	for _, body := range outcomes {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/outcomes", strings.NewReader(body)))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/progressive/polycarbonate/wrap", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalOrders   int      `json:"total_orders"`
		NonAdaptRate  *float64 `json:"non_adapt_rate"`
		RemakeRate    *float64 `json:"remake_rate"`
		AvgRemakeDays *float64 `json:"average_remake_days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.TotalOrders)
	require.NotNil(t, body.NonAdaptRate)
	assert.InDelta(t, 0.25, *body.NonAdaptRate, 1e-9)
	require.NotNil(t, body.RemakeRate)
	assert.InDelta(t, 0.25, *body.RemakeRate, 1e-9)
	// No remake days reported, so the average stays null rather than zero.
	assert.Nil(t, body.AvgRemakeDays)
}

func TestReportOutcome_DuplicateIsAcceptedButNotDoubleCounted(t *testing.T) {
	mux := analyticsMux(newFakeAnalyticsRepo())

	body := `{"outcome_id":"dup","lens_type":"progressive","lens_material":"polycarbonate","frame_type":"wrap","non_adapt":true}`
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/outcomes", strings.NewReader(body)))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/progressive/polycarbonate/wrap", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		TotalOrders int `json:"total_orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalOrders)
}

func TestReportOutcome_MissingKeyRejected(t *testing.T) {
	mux := analyticsMux(newFakeAnalyticsRepo())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/outcomes",
		strings.NewReader(`{"outcome_id":"o-1","lens_type":"progressive"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAnalytic_UnknownCombination(t *testing.T) {
	mux := analyticsMux(newFakeAnalyticsRepo())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/bifocal/cr39/rimless", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
