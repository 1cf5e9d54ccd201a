package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lenswise/dispense-advisor/internal/adapters/database"
	"github.com/lenswise/dispense-advisor/internal/adapters/search"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/typesense"
	"github.com/lenswise/dispense-advisor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	var searchRepo *search.CatalogIndexAdapter
	if err == nil {
		searchRepo = search.NewCatalogIndexAdapter(tsClient)
		searchRepo.InitSchema(context.Background())
	}

	catalogRepo := database.NewCatalogAdapter(pgClient)

	ctx := context.Background()
	db := pgClient.DB()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := db.ExecContext(ctx, `
			TRUNCATE TABLE
				prescription_alerts,
				recommendation_sets,
				intent_extractions,
				processed_outcomes,
				lens_frame_analytics,
				clinical_analytic_patterns,
				catalog_items
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	const ecpID = "ecp-demo"
	now := time.Now()

	// 1. Seed catalog items for a demo practice
	items := []entities.CatalogItem{
		{ID: uuid.New().String(), ECPID: ecpID, SKU: "SV-CR39-STD", Name: "Standard Single Vision CR-39", LensType: "single_vision", LensMaterial: "cr-39", Coating: "hard-coat", RetailPrice: 89, WholesalePrice: 22, StockQuantity: 120, IsInStock: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), ECPID: ecpID, SKU: "SV-POLY-AR", Name: "Single Vision Poly AR", LensType: "single_vision", LensMaterial: "polycarbonate", Coating: "anti-reflective", DesignFeatures: []string{"anti-glare"}, RetailPrice: 149, WholesalePrice: 38, StockQuantity: 80, IsInStock: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), ECPID: ecpID, SKU: "PAL-POLY-STD", Name: "Everyday Progressive Poly", LensType: "progressive", LensMaterial: "polycarbonate", Coating: "anti-reflective", DesignFeatures: []string{"soft-design"}, RetailPrice: 249, WholesalePrice: 74, StockQuantity: 45, IsInStock: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), ECPID: ecpID, SKU: "PAL-POLY-DIG", Name: "Digital Progressive Poly Premium", LensType: "progressive", LensMaterial: "polycarbonate", Coating: "premium-ar", DesignFeatures: []string{"digital-surfacing", "soft-design", "blue-light-filter"}, RetailPrice: 429, WholesalePrice: 128, StockQuantity: 20, IsInStock: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), ECPID: ecpID, SKU: "PAL-HI-DIG", Name: "Digital Progressive 1.67 High Index", LensType: "progressive", LensMaterial: "high_index_1.67", Coating: "premium-ar", DesignFeatures: []string{"digital-surfacing", "high_index", "thin-profile"}, RetailPrice: 519, WholesalePrice: 162, StockQuantity: 12, IsInStock: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), ECPID: ecpID, SKU: "OFF-POLY-BLF", Name: "Office Lens Poly Blue Filter", LensType: "office", LensMaterial: "polycarbonate", Coating: "anti-reflective", DesignFeatures: []string{"blue-light-filter", "extended-intermediate"}, RetailPrice: 289, WholesalePrice: 92, StockQuantity: 30, IsInStock: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), ECPID: ecpID, SKU: "SV-TRX-PHOTO", Name: "Trivex Photochromic Single Vision", LensType: "single_vision", LensMaterial: "trivex", Coating: "anti-reflective", DesignFeatures: []string{"photochromic", "impact-resistant"}, RetailPrice: 319, WholesalePrice: 104, StockQuantity: 0, IsInStock: false, CreatedAt: now, UpdatedAt: now},
	}

	for _, item := range items {
		if err := catalogRepo.Upsert(ctx, &item); err != nil {
			log.Printf("Failed to create catalog item %s: %v", item.SKU, err)
			continue
		}
		if searchRepo != nil {
			if err := searchRepo.Index(ctx, &item); err != nil {
				log.Printf("Failed to index catalog item %s: %v", item.SKU, err)
			}
		}
	}

	// 2. Seed outcome aggregates. These tables are normally fed by reported
	// outcomes and the external batch refresh, so the seed writes them with
	// plain SQL instead of going through the services.
	analytics := []entities.LensFrameAnalytic{
		{LensType: "progressive", LensMaterial: "polycarbonate", FrameType: "standard", TotalOrders: 640, NonAdaptCount: 51, RemakeCount: 32, RemakeDaysTotal: 288, RemakeDaysCount: 32, LastUpdated: now},
		{LensType: "progressive", LensMaterial: "polycarbonate", FrameType: "wrap", TotalOrders: 210, NonAdaptCount: 57, RemakeCount: 38, RemakeDaysTotal: 342, RemakeDaysCount: 38, LastUpdated: now},
		{LensType: "progressive", LensMaterial: "high_index_1.67", FrameType: "standard", TotalOrders: 180, NonAdaptCount: 13, RemakeCount: 9, RemakeDaysTotal: 99, RemakeDaysCount: 9, LastUpdated: now},
		{LensType: "single_vision", LensMaterial: "polycarbonate", FrameType: "wrap", TotalOrders: 330, NonAdaptCount: 12, RemakeCount: 8, RemakeDaysTotal: 56, RemakeDaysCount: 8, LastUpdated: now},
		{LensType: "single_vision", LensMaterial: "cr-39", FrameType: "standard", TotalOrders: 950, NonAdaptCount: 19, RemakeCount: 24, RemakeDaysTotal: 168, RemakeDaysCount: 24, LastUpdated: now},
	}

	for _, a := range analytics {
		_, err := db.ExecContext(
			ctx,
			`INSERT INTO lens_frame_analytics
				(lens_type, lens_material, frame_type, total_orders, non_adapt_count, remake_count, remake_days_total, remake_days_count, historical_data_points, last_updated)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '[]'::jsonb, $9)
			 ON CONFLICT (lens_type, lens_material, frame_type) DO NOTHING`,
			a.LensType, a.LensMaterial, a.FrameType,
			a.TotalOrders, a.NonAdaptCount, a.RemakeCount, a.RemakeDaysTotal, a.RemakeDaysCount,
			a.LastUpdated,
		)
		if err != nil {
			log.Printf("Failed to seed analytic %s/%s/%s: %v", a.LensType, a.LensMaterial, a.FrameType, err)
		}
	}

	// 3. Seed clinical scenario patterns
	patterns := []entities.ClinicalAnalyticPattern{
		{
			ID: uuid.New().String(), ScenarioKey: "axis:90|cyl:mid|wrap:wrapped",
			SuccessRate: 0.71, NonAdaptRate: 0.21, RemakeRate: 0.12, SampleSize: 188,
			PatternInsights: map[string]float64{"wrap_tilt_compensation": 0.64},
			ClinicalContext: entities.ClinicalContext{BestFor: []string{"frequent_driver", "outdoor"}, WorstFor: []string{"heavy_screen_use"}},
			RefreshedAt:     now,
		},
		{
			ID: uuid.New().String(), ScenarioKey: "axis:90|cyl:mid",
			SuccessRate: 0.86, NonAdaptRate: 0.08, RemakeRate: 0.05, SampleSize: 910,
			ClinicalContext: entities.ClinicalContext{BestFor: []string{"heavy_screen_use", "presbyopic"}, WorstFor: nil},
			RefreshedAt:     now,
		},
		{
			ID: uuid.New().String(), ScenarioKey: "axis:0|cyl:low",
			SuccessRate: 0.92, NonAdaptRate: 0.04, RemakeRate: 0.03, SampleSize: 2150,
			ClinicalContext: entities.ClinicalContext{BestFor: []string{"heavy_screen_use", "first_progressive"}, WorstFor: nil},
			RefreshedAt:     now,
		},
		{
			ID: uuid.New().String(), ScenarioKey: "axis:45|cyl:high|wrap:standard",
			SuccessRate: 0.63, NonAdaptRate: 0.27, RemakeRate: 0.14, SampleSize: 96,
			PatternInsights: map[string]float64{"oblique_axis_sensitivity": 0.58},
			ClinicalContext: entities.ClinicalContext{BestFor: []string{"outdoor"}, WorstFor: []string{"night_driving"}},
			RefreshedAt:     now,
		},
	}

	for _, p := range patterns {
		insights, err := json.Marshal(p.PatternInsights)
		if err != nil {
			log.Printf("Failed to encode insights for %s: %v", p.ScenarioKey, err)
			continue
		}
		_, err = db.ExecContext(
			ctx,
			`INSERT INTO clinical_analytic_patterns
				(id, scenario_key, success_rate, non_adapt_rate, remake_rate, sample_size, pattern_insights, best_for, worst_for, refreshed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO NOTHING`,
			p.ID, p.ScenarioKey,
			p.SuccessRate, p.NonAdaptRate, p.RemakeRate, p.SampleSize,
			insights,
			pq.Array(p.ClinicalContext.BestFor),
			pq.Array(p.ClinicalContext.WorstFor),
			p.RefreshedAt,
		)
		if err != nil {
			log.Printf("Failed to seed pattern %s: %v", p.ScenarioKey, err)
		}
	}

	log.Println("Seeding completed successfully")
}
