package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// RecommendationAdapter implements RecommendationRepository on Postgres.
// Sets are append-only; the newest row per order supersedes earlier ones.
type RecommendationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRecommendationAdapter creates a new recommendation adapter.
func NewRecommendationAdapter(client *postgres.Client) repositories.RecommendationRepository {
	return &RecommendationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new recommendation set.
func (a *RecommendationAdapter) Create(ctx context.Context, set *entities.RecommendationSet) error {
	if set.ID == "" {
		set.ID = uuid.New().String()
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	tiers, err := json.Marshal(set.Recommendations)
	if err != nil {
		return apperrors.NewInternalError("failed to encode recommendation tiers", err)
	}
	metadata, err := json.Marshal(set.AnalysisMetadata)
	if err != nil {
		return apperrors.NewInternalError("failed to encode analysis metadata", err)
	}

	record := goqu.Record{
		"id":                        set.ID,
		"order_id":                  set.OrderID,
		"recommendations":           tiers,
		"clinical_confidence_score": set.ClinicalConfidenceScore,
		"analysis_metadata":         metadata,
		"created_at":                set.CreatedAt,
	}

	query, args, err := a.db.Insert("recommendation_sets").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build recommendation insert", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create recommendation set", err)
	}
	return nil
}

// GetLatestByOrder returns the most recent set for an order, or nil.
func (a *RecommendationAdapter) GetLatestByOrder(ctx context.Context, orderID string) (*entities.RecommendationSet, error) {
	query, args, err := a.db.Select(
		"id", "order_id", "recommendations", "clinical_confidence_score",
		"analysis_metadata", "created_at",
	).From("recommendation_sets").
		Where(goqu.Ex{"order_id": orderID}).
		Order(goqu.I("created_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build recommendation query", err)
	}

	set := &entities.RecommendationSet{}
	var tiers, metadata []byte

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&set.ID,
		&set.OrderID,
		&tiers,
		&set.ClinicalConfidenceScore,
		&metadata,
		&set.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get recommendation set", err)
	}

	if err := json.Unmarshal(tiers, &set.Recommendations); err != nil {
		return nil, apperrors.NewInternalError("failed to decode recommendation tiers", err)
	}
	if err := json.Unmarshal(metadata, &set.AnalysisMetadata); err != nil {
		return nil, apperrors.NewInternalError("failed to decode analysis metadata", err)
	}
	return set, nil
}
