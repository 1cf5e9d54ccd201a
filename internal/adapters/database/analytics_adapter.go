package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// AnalyticsAdapter implements AnalyticsRepository on Postgres. Counter
// updates run as a single atomic upsert-increment statement so concurrent
// outcome deliveries for the same key serialize inside the store rather than
// racing read-modify-write cycles in the application.
type AnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAnalyticsAdapter creates a new analytics adapter.
func NewAnalyticsAdapter(client *postgres.Client) repositories.AnalyticsRepository {
	return &AnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

const applyOutcomeSQL = `
	INSERT INTO lens_frame_analytics
		(lens_type, lens_material, frame_type, total_orders, non_adapt_count,
		 remake_count, remake_days_total, remake_days_count, historical_data_points, last_updated)
	VALUES ($1, $2, $3, 1, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (lens_type, lens_material, frame_type) DO UPDATE SET
		total_orders           = lens_frame_analytics.total_orders + 1,
		non_adapt_count        = lens_frame_analytics.non_adapt_count + EXCLUDED.non_adapt_count,
		remake_count           = lens_frame_analytics.remake_count + EXCLUDED.remake_count,
		remake_days_total      = lens_frame_analytics.remake_days_total + EXCLUDED.remake_days_total,
		remake_days_count      = lens_frame_analytics.remake_days_count + EXCLUDED.remake_days_count,
		historical_data_points = lens_frame_analytics.historical_data_points || EXCLUDED.historical_data_points,
		last_updated           = EXCLUDED.last_updated
`

// ApplyOutcome records one outcome. The processed_outcomes insert gates the
// increment inside the same transaction, so re-delivery of an OutcomeID can
// never double-count.
func (a *AnalyticsAdapter) ApplyOutcome(ctx context.Context, event *entities.OutcomeEvent) (bool, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return false, apperrors.NewInternalError("failed to begin outcome transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO processed_outcomes (outcome_id, processed_at) VALUES ($1, $2) ON CONFLICT (outcome_id) DO NOTHING`,
		event.OutcomeID, time.Now().UTC(),
	)
	if err != nil {
		return false, apperrors.NewInternalError("failed to record outcome id", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to inspect outcome dedupe result", err)
	}
	if inserted == 0 {
		// Already processed; nothing to apply.
		return false, tx.Commit()
	}

	nonAdapt, remade, remakeDays, remakeDaysCount := 0, 0, 0, 0
	if event.NonAdapt {
		nonAdapt = 1
	}
	if event.Remade {
		remade = 1
		if event.RemakeDays != nil {
			remakeDays = *event.RemakeDays
			remakeDaysCount = 1
		}
	}

	point, err := json.Marshal([]entities.OutcomeDataPoint{{
		RecordedAt: event.ReportedAt,
		NonAdapt:   event.NonAdapt,
		Remade:     event.Remade,
		RemakeDays: event.RemakeDays,
	}})
	if err != nil {
		return false, apperrors.NewInternalError("failed to encode outcome data point", err)
	}

	_, err = tx.ExecContext(ctx, applyOutcomeSQL,
		event.LensType, event.LensMaterial, event.FrameType,
		nonAdapt, remade, remakeDays, remakeDaysCount, point, time.Now().UTC(),
	)
	if err != nil {
		return false, apperrors.NewInternalError("failed to apply outcome increment", err)
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewInternalError("failed to commit outcome", err)
	}
	return true, nil
}

// Lookup returns the aggregate for a combination, or nil when absent.
func (a *AnalyticsAdapter) Lookup(ctx context.Context, lensType, lensMaterial, frameType string) (*entities.LensFrameAnalytic, error) {
	query, args, err := a.db.Select(
		"lens_type", "lens_material", "frame_type", "total_orders", "non_adapt_count",
		"remake_count", "remake_days_total", "remake_days_count", "historical_data_points", "last_updated",
	).From("lens_frame_analytics").
		Where(goqu.Ex{
			"lens_type":     lensType,
			"lens_material": lensMaterial,
			"frame_type":    frameType,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build analytics lookup query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	analytic, err := scanAnalytic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to look up analytic", err)
	}
	return analytic, nil
}

// ListByFrameType returns aggregates sharing a frame type, lowest non-adapt
// rate first; combinations without any orders sort last.
func (a *AnalyticsAdapter) ListByFrameType(ctx context.Context, frameType string) ([]*entities.LensFrameAnalytic, error) {
	query := `
		SELECT lens_type, lens_material, frame_type, total_orders, non_adapt_count,
		       remake_count, remake_days_total, remake_days_count, historical_data_points, last_updated
		FROM lens_frame_analytics
		WHERE frame_type = $1
		ORDER BY (non_adapt_count::float / NULLIF(total_orders, 0)) ASC NULLS LAST,
		         total_orders DESC, lens_type, lens_material
	`
	rows, err := a.client.DB().QueryContext(ctx, query, frameType)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list analytics by frame type", err)
	}
	defer rows.Close()

	var analytics []*entities.LensFrameAnalytic
	for rows.Next() {
		analytic, err := scanAnalytic(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan analytic", err)
		}
		analytics = append(analytics, analytic)
	}
	return analytics, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalytic(row rowScanner) (*entities.LensFrameAnalytic, error) {
	analytic := &entities.LensFrameAnalytic{}
	var points []byte

	err := row.Scan(
		&analytic.LensType,
		&analytic.LensMaterial,
		&analytic.FrameType,
		&analytic.TotalOrders,
		&analytic.NonAdaptCount,
		&analytic.RemakeCount,
		&analytic.RemakeDaysTotal,
		&analytic.RemakeDaysCount,
		&points,
		&analytic.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if len(points) > 0 {
		if err := json.Unmarshal(points, &analytic.HistoricalDataPoints); err != nil {
			return nil, err
		}
	}
	return analytic, nil
}
