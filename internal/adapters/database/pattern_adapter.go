package database

import (
	"context"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// PatternAdapter implements PatternRepository on Postgres. The table is
// written by the external batch refresh; this adapter only reads it.
type PatternAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatternAdapter creates a new pattern adapter.
func NewPatternAdapter(client *postgres.Client) repositories.PatternRepository {
	return &PatternAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var patternColumns = []interface{}{
	"id", "scenario_key", "success_rate", "non_adapt_rate", "remake_rate",
	"sample_size", "pattern_insights", "best_for", "worst_for", "refreshed_at",
}

// GetByScenarioKey returns all patterns recorded for a scenario key.
func (a *PatternAdapter) GetByScenarioKey(ctx context.Context, scenarioKey string) ([]*entities.ClinicalAnalyticPattern, error) {
	query, args, err := a.db.Select(patternColumns...).
		From("clinical_analytic_patterns").
		Where(goqu.Ex{"scenario_key": scenarioKey}).
		Order(goqu.I("success_rate").Desc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build pattern query", err)
	}
	return a.queryPatterns(ctx, query, args...)
}

// ListTop returns the highest-sample patterns for cache warming.
func (a *PatternAdapter) ListTop(ctx context.Context, limit int) ([]*entities.ClinicalAnalyticPattern, error) {
	if limit <= 0 {
		limit = 100
	}
	query, args, err := a.db.Select(patternColumns...).
		From("clinical_analytic_patterns").
		Order(goqu.I("sample_size").Desc(), goqu.I("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build top-pattern query", err)
	}
	return a.queryPatterns(ctx, query, args...)
}

func (a *PatternAdapter) queryPatterns(ctx context.Context, query string, args ...interface{}) ([]*entities.ClinicalAnalyticPattern, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query clinical patterns", err)
	}
	defer rows.Close()

	var patterns []*entities.ClinicalAnalyticPattern
	for rows.Next() {
		p := &entities.ClinicalAnalyticPattern{}
		var insights []byte

		err := rows.Scan(
			&p.ID,
			&p.ScenarioKey,
			&p.SuccessRate,
			&p.NonAdaptRate,
			&p.RemakeRate,
			&p.SampleSize,
			&insights,
			pq.Array(&p.ClinicalContext.BestFor),
			pq.Array(&p.ClinicalContext.WorstFor),
			&p.RefreshedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan clinical pattern", err)
		}

		if len(insights) > 0 {
			if err := json.Unmarshal(insights, &p.PatternInsights); err != nil {
				return nil, apperrors.NewInternalError("failed to decode pattern insights", err)
			}
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
