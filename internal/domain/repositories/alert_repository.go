package repositories

import (
	"context"

	"github.com/lenswise/dispense-advisor/internal/domain/entities"
)

// AlertRepository persists prescription alerts and their human-driven
// lifecycle. Alerts are never recomputed in place; a changed prescription
// produces a new row.
type AlertRepository interface {
	// Create persists a new alert.
	Create(ctx context.Context, alert *entities.PrescriptionAlert) error

	// GetByID retrieves one alert.
	GetByID(ctx context.Context, id string) (*entities.PrescriptionAlert, error)

	// ListByOrder returns all alerts for an order, newest first.
	ListByOrder(ctx context.Context, orderID string) ([]*entities.PrescriptionAlert, error)

	// Dismiss marks an alert dismissed by a named user.
	Dismiss(ctx context.Context, id, dismissedBy string) error

	// RecordAction records the action a dispenser took on an alert.
	RecordAction(ctx context.Context, id, action string) error
}
