package routes

import (
	"net/http"

	"github.com/lenswise/dispense-advisor/internal/api/handlers"
	"github.com/lenswise/dispense-advisor/internal/api/middleware"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	analysisHandler  *handlers.AnalysisHandler
	alertHandler     *handlers.AlertHandler
	analyticsHandler *handlers.AnalyticsHandler
	catalogHandler   *handlers.CatalogHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	analysisHandler *handlers.AnalysisHandler,
	alertHandler *handlers.AlertHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	catalogHandler *handlers.CatalogHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		analysisHandler:  analysisHandler,
		alertHandler:     alertHandler,
		analyticsHandler: analyticsHandler,
		catalogHandler:   catalogHandler,

		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Order analysis endpoints
	r.mux.HandleFunc("POST /api/orders/analyze", r.analysisHandler.AnalyzeOrder)
	r.mux.HandleFunc("POST /api/orders/risk", r.analysisHandler.CheckRisk)
	r.mux.HandleFunc("GET /api/orders/{orderId}/recommendations", r.analysisHandler.GetRecommendations)
	r.mux.HandleFunc("GET /api/orders/{orderId}/extraction", r.analysisHandler.GetExtraction)

	// Alert lifecycle endpoints
	r.mux.HandleFunc("GET /api/orders/{orderId}/alerts", r.alertHandler.ListOrderAlerts)
	r.mux.HandleFunc("GET /api/alerts/{id}", r.alertHandler.GetAlert)
	r.mux.HandleFunc("POST /api/alerts/{id}/dismiss", r.alertHandler.DismissAlert)
	r.mux.HandleFunc("POST /api/alerts/{id}/action", r.alertHandler.RecordAction)

	// Outcome analytics endpoints
	r.mux.HandleFunc("GET /api/analytics/{lensType}/{material}/{frameType}", r.analyticsHandler.GetAnalytic)
	r.mux.HandleFunc("POST /api/outcomes", r.analyticsHandler.ReportOutcome)

	// Practice catalog endpoints
	r.mux.HandleFunc("POST /api/catalog/items", r.catalogHandler.UpsertItem)
	r.mux.HandleFunc("GET /api/catalog/search", r.catalogHandler.SearchCatalog)
	r.mux.HandleFunc("GET /api/catalog/{ecpId}/items/{sku}", r.catalogHandler.GetItem)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
