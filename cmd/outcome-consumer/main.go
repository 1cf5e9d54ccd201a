package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lenswise/dispense-advisor/internal/adapters/cache"
	"github.com/lenswise/dispense-advisor/internal/adapters/database"
	"github.com/lenswise/dispense-advisor/internal/adapters/events"
	"github.com/lenswise/dispense-advisor/internal/application/services"
	"github.com/lenswise/dispense-advisor/internal/domain/providers"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/redis"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/observability"
	"github.com/lenswise/dispense-advisor/pkg/config"
)

// outcome-consumer subscribes to the order outcome channel and folds each
// event into the lens/frame analytics store. It exists so lab management
// systems can report outcomes through Redis instead of the HTTP API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger("outcome-consumer", os.Getenv("ENV"))
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()

	cacheProvider := cache.NewRedisAdapter(redisClient)
	analyticsRepo := database.NewAnalyticsAdapter(pgClient)
	aggregator := services.NewAnalyticsAggregator(analyticsRepo, cacheProvider)

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan, err := eventBus.Subscribe(ctx, providers.EventChannelOrderOutcomes)
	if err != nil {
		log.Fatalf("Failed to subscribe to outcome channel: %v", err)
	}
	logger.Info().Str("channel", providers.EventChannelOrderOutcomes).Msg("Outcome consumer started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			logger.Info().Msg("Outcome consumer shutting down")
			return
		case event, ok := <-eventChan:
			if !ok {
				logger.Info().Msg("Outcome channel closed")
				return
			}
			if err := aggregator.RecordOutcome(ctx, event); err != nil {
				logger.Error().Err(err).Str("outcome_id", event.OutcomeID).Msg("Failed to record outcome")
			}
		}
	}
}
