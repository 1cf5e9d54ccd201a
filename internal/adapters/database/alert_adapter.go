package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lenswise/dispense-advisor/internal/domain/entities"
	"github.com/lenswise/dispense-advisor/internal/domain/repositories"
	"github.com/lenswise/dispense-advisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/lenswise/dispense-advisor/pkg/errors"
)

// AlertAdapter implements AlertRepository on Postgres.
type AlertAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAlertAdapter creates a new alert adapter.
func NewAlertAdapter(client *postgres.Client) repositories.AlertRepository {
	return &AlertAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new alert.
func (a *AlertAdapter) Create(ctx context.Context, alert *entities.PrescriptionAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":                        alert.ID,
		"order_id":                  alert.OrderID,
		"alert_type":                alert.AlertType,
		"severity":                  string(alert.Severity),
		"risk_score":                alert.RiskScore,
		"historical_non_adapt_rate": alert.HistoricalNonAdaptRate,
		"recommended_lens_type":     sql.NullString{String: alert.RecommendedLensType, Valid: alert.RecommendedLensType != ""},
		"recommended_lens_material": sql.NullString{String: alert.RecommendedLensMaterial, Valid: alert.RecommendedLensMaterial != ""},
		"recommended_coating":       sql.NullString{String: alert.RecommendedCoating, Valid: alert.RecommendedCoating != ""},
		"explanation":               alert.Explanation,
		"created_at":                alert.CreatedAt,
	}

	query, args, err := a.db.Insert("prescription_alerts").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build alert insert", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create alert", err)
	}
	return nil
}

var alertColumns = []interface{}{
	"id", "order_id", "alert_type", "severity", "risk_score",
	"historical_non_adapt_rate", "recommended_lens_type",
	"recommended_lens_material", "recommended_coating", "explanation",
	"dismissed_at", "dismissed_by", "action_taken", "created_at",
}

// GetByID retrieves one alert.
func (a *AlertAdapter) GetByID(ctx context.Context, id string) (*entities.PrescriptionAlert, error) {
	query, args, err := a.db.Select(alertColumns...).
		From("prescription_alerts").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build alert query", err)
	}

	alert, err := scanAlert(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("alert not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get alert", err)
	}
	return alert, nil
}

// ListByOrder returns all alerts for an order, newest first.
func (a *AlertAdapter) ListByOrder(ctx context.Context, orderID string) ([]*entities.PrescriptionAlert, error) {
	query, args, err := a.db.Select(alertColumns...).
		From("prescription_alerts").
		Where(goqu.Ex{"order_id": orderID}).
		Order(goqu.I("created_at").Desc(), goqu.I("alert_type").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build alert list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list alerts", err)
	}
	defer rows.Close()

	alerts := []*entities.PrescriptionAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan alert", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// Dismiss marks an alert dismissed by a named user.
func (a *AlertAdapter) Dismiss(ctx context.Context, id, dismissedBy string) error {
	query, args, err := a.db.Update("prescription_alerts").
		Set(goqu.Record{
			"dismissed_at": time.Now().UTC(),
			"dismissed_by": dismissedBy,
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build dismiss update", err)
	}
	return a.execExpectingRow(ctx, query, args, "alert not found")
}

// RecordAction records the action a dispenser took on an alert.
func (a *AlertAdapter) RecordAction(ctx context.Context, id, action string) error {
	query, args, err := a.db.Update("prescription_alerts").
		Set(goqu.Record{"action_taken": action}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build action update", err)
	}
	return a.execExpectingRow(ctx, query, args, "alert not found")
}

func (a *AlertAdapter) execExpectingRow(ctx context.Context, query string, args []interface{}, missing string) error {
	res, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update alert", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to inspect alert update", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(missing)
	}
	return nil
}

func scanAlert(row rowScanner) (*entities.PrescriptionAlert, error) {
	alert := &entities.PrescriptionAlert{}
	var severity string
	var recLensType, recLensMaterial, recCoating, dismissedBy, actionTaken sql.NullString
	var dismissedAt sql.NullTime

	err := row.Scan(
		&alert.ID,
		&alert.OrderID,
		&alert.AlertType,
		&severity,
		&alert.RiskScore,
		&alert.HistoricalNonAdaptRate,
		&recLensType,
		&recLensMaterial,
		&recCoating,
		&alert.Explanation,
		&dismissedAt,
		&dismissedBy,
		&actionTaken,
		&alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Severity = entities.AlertSeverity(severity)
	alert.RecommendedLensType = recLensType.String
	alert.RecommendedLensMaterial = recLensMaterial.String
	alert.RecommendedCoating = recCoating.String
	alert.DismissedBy = dismissedBy.String
	alert.ActionTaken = actionTaken.String
	if dismissedAt.Valid {
		t := dismissedAt.Time
		alert.DismissedAt = &t
	}
	return alert, nil
}
