package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// ExtractionAdapter implements ExtractionRepository on Postgres. Rows are
// append-only; re-analysis inserts a new row for the same order.
type ExtractionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewExtractionAdapter creates a new extraction adapter.
func NewExtractionAdapter(client *postgres.Client) repositories.ExtractionRepository {
	return &ExtractionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new extraction record.
func (a *ExtractionAdapter) Create(ctx context.Context, extraction *entities.ClinicalIntentExtraction) error {
	if extraction.ID == "" {
		extraction.ID = uuid.New().String()
	}
	if extraction.CreatedAt.IsZero() {
		extraction.CreatedAt = time.Now().UTC()
	}

	tags, err := json.Marshal(extraction.IntentTags)
	if err != nil {
		return apperrors.NewInternalError("failed to encode intent tags", err)
	}

	record := goqu.Record{
		"id":                 extraction.ID,
		"order_id":           extraction.OrderID,
		"intent_tags":        tags,
		"patient_lifestyle":  pq.Array(extraction.PatientLifestyle),
		"patient_complaints": pq.Array(extraction.PatientComplaints),
		"clinical_flags":     pq.Array(extraction.ClinicalFlags),
		"clinical_summary":   extraction.ClinicalSummary,
		"confidence":         extraction.Confidence,
		"created_at":         extraction.CreatedAt,
	}

	query, args, err := a.db.Insert("clinical_intent_extractions").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build extraction insert", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create extraction", err)
	}
	return nil
}

// GetLatestByOrder returns the most recent extraction for an order, or nil.
func (a *ExtractionAdapter) GetLatestByOrder(ctx context.Context, orderID string) (*entities.ClinicalIntentExtraction, error) {
	query, args, err := a.db.Select(
		"id", "order_id", "intent_tags", "patient_lifestyle", "patient_complaints",
		"clinical_flags", "clinical_summary", "confidence", "created_at",
	).From("clinical_intent_extractions").
		Where(goqu.Ex{"order_id": orderID}).
		Order(goqu.I("created_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build extraction query", err)
	}

	extraction := &entities.ClinicalIntentExtraction{}
	var tags []byte

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&extraction.ID,
		&extraction.OrderID,
		&tags,
		pq.Array(&extraction.PatientLifestyle),
		pq.Array(&extraction.PatientComplaints),
		pq.Array(&extraction.ClinicalFlags),
		&extraction.ClinicalSummary,
		&extraction.Confidence,
		&extraction.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get extraction", err)
	}

	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &extraction.IntentTags); err != nil {
			return nil, apperrors.NewInternalError("failed to decode intent tags", err)
		}
	}
	return extraction, nil
}
