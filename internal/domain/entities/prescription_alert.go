package entities

import "time"

// AlertSeverity classifies how urgently a prescription alert should be
// surfaced to the dispenser.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert types emitted by the risk scorer, in evaluation order.
const (
	AlertHighWrap             = "high_wrap"
	AlertHighAdd              = "high_add"
	AlertHighPowerProgressive = "high_power_progressive"
)

// PrescriptionAlert flags a prescription likely to produce non-adaptation or
// a remake. One alert exists per (orderID, alertType); a changed prescription
// produces a new alert rather than an edit, and only a human dismissing or
// acting on it mutates the lifecycle fields.
type PrescriptionAlert struct {
	ID                      string        `json:"id" db:"id"`
	OrderID                 string        `json:"order_id" db:"order_id"`
	AlertType               string        `json:"alert_type" db:"alert_type"`
	Severity                AlertSeverity `json:"severity" db:"severity"`
	RiskScore               float64       `json:"risk_score" db:"risk_score"`
	HistoricalNonAdaptRate  float64       `json:"historical_non_adapt_rate" db:"historical_non_adapt_rate"`
	RecommendedLensType     string        `json:"recommended_lens_type,omitempty" db:"recommended_lens_type"`
	RecommendedLensMaterial string        `json:"recommended_lens_material,omitempty" db:"recommended_lens_material"`
	RecommendedCoating      string        `json:"recommended_coating,omitempty" db:"recommended_coating"`
	Explanation             string        `json:"explanation" db:"explanation"`
	DismissedAt             *time.Time    `json:"dismissed_at,omitempty" db:"dismissed_at"`
	DismissedBy             string        `json:"dismissed_by,omitempty" db:"dismissed_by"`
	ActionTaken             string        `json:"action_taken,omitempty" db:"action_taken"`
	CreatedAt               time.Time     `json:"created_at" db:"created_at"`
}

// HasAlternative reports whether the alert carries a recommended lens
// alternative.
func (a *PrescriptionAlert) HasAlternative() bool {
	return a.RecommendedLensType != "" || a.RecommendedLensMaterial != ""
}
