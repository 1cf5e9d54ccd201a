package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lenswise/dispense-advisor/internal/adapters/cache"
	"github.com/lenswise/dispense-advisor/internal/adapters/database"
	"github.com/lenswise/dispense-advisor/internal/adapters/events"
	"github.com/lenswise/dispense-advisor/internal/adapters/search"
	"github.com/lenswise/dispense-advisor/internal/api/handlers"
	"github.com/lenswise/dispense-advisor/internal/api/middleware"
	"github.com/lenswise/dispense-advisor/internal/api/routes"
	"github.com/lenswise/dispense-advisor/internal/application/services"
	"github.com/lenswise/dispense-advisor/internal/domain/providers"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/redis"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/typesense"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/observability"
	"github.com/lenswise/dispense-advisor/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("ENV"))

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - the application can work without caching
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Warning: Failed to initialize Typesense client: %v", err)
	} else {
		log.Println("Typesense client initialized successfully")
	}

	// Initialize adapters
	analyticsRepo := database.NewAnalyticsAdapter(pgClient)
	patternRepo := database.NewPatternAdapter(pgClient)
	catalogRepo := database.NewCatalogAdapter(pgClient)
	alertRepo := database.NewAlertAdapter(pgClient)
	extractionRepo := database.NewExtractionAdapter(pgClient)
	recommendationRepo := database.NewRecommendationAdapter(pgClient)

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	var catalogSearchRepo repositories.CatalogSearchRepository
	if typesenseClient != nil {
		adapter := search.NewCatalogIndexAdapter(typesenseClient)

		// Ensure schema exists
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: Failed to init Typesense schema: %v", err)
		}
		catalogSearchRepo = adapter
	}

	// Initialize event bus for outcome fan-out
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	// Initialize services
	aggregator := services.NewAnalyticsAggregator(analyticsRepo, cacheProvider)
	riskScorer := services.NewRiskScorer(aggregator)
	extractor := services.NewIntentExtractor()
	patternMatcher := services.NewPatternMatcher(patternRepo, cacheProvider)
	catalogMatcher := services.NewCatalogMatcher(catalogRepo)
	composer := services.NewRecommendationComposer(extractor, patternMatcher, catalogMatcher)

	// Pre-warm the pattern cache so the first analysis requests do not
	// all fall through to Postgres.
	var warmingService *services.PatternWarmingService
	if cacheProvider != nil && cfg.Warming.Enabled {
		warmingService = services.NewPatternWarmingService(patternRepo, cacheProvider)
		if err := warmingService.Start(ctx, cfg.Warming.Interval); err != nil {
			log.Printf("Warning: Failed to start pattern warming: %v", err)
		} else {
			log.Printf("Pattern warming started (refreshes every %v)", cfg.Warming.Interval)
		}
	}

	// Initialize handlers
	analysisHandler := handlers.NewAnalysisHandler(composer, riskScorer, extractionRepo, recommendationRepo, alertRepo)
	alertHandler := handlers.NewAlertHandler(alertRepo)
	analyticsHandler := handlers.NewAnalyticsHandler(aggregator, eventBus)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, catalogSearchRepo)

	// Initialize cache middleware
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
		log.Println("Cache middleware initialized successfully")
	}

	// Set up router
	router := routes.NewRouter(
		analysisHandler,
		alertHandler,
		analyticsHandler,
		catalogHandler,
		cacheMiddleware,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	// Stop pattern warming
	if warmingService != nil {
		warmingService.Stop()
	}

	log.Println("Server stopped")
}
