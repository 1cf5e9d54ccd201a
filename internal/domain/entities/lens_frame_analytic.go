package entities

import "time"

// OutcomeDataPoint is a single entry in an analytic's historical time series.
type OutcomeDataPoint struct {
	RecordedAt time.Time `json:"recorded_at"`
	NonAdapt   bool      `json:"non_adapt"`
	Remade     bool      `json:"remade"`
	RemakeDays *int      `json:"remake_days,omitempty"`
}

// LensFrameAnalytic is the rolling outcome aggregate for one
// (lensType, lensMaterial, frameType) combination. Counts are the source of
// truth; rates are always derived from counts so concurrent updates cannot
// drift the two apart.
type LensFrameAnalytic struct {
	LensType             string             `json:"lens_type" db:"lens_type"`
	LensMaterial         string             `json:"lens_material" db:"lens_material"`
	FrameType            string             `json:"frame_type" db:"frame_type"`
	TotalOrders          int                `json:"total_orders" db:"total_orders"`
	NonAdaptCount        int                `json:"non_adapt_count" db:"non_adapt_count"`
	RemakeCount          int                `json:"remake_count" db:"remake_count"`
	RemakeDaysTotal      int                `json:"-" db:"remake_days_total"`
	RemakeDaysCount      int                `json:"-" db:"remake_days_count"`
	HistoricalDataPoints []OutcomeDataPoint `json:"historical_data_points,omitempty" db:"-"`
	LastUpdated          time.Time          `json:"last_updated" db:"last_updated"`
}

// NonAdaptRate returns nonAdaptCount/totalOrders, or nil when there are no
// orders yet. Nil is deliberate: "no data" must stay distinguishable from
// "zero risk".
func (a *LensFrameAnalytic) NonAdaptRate() *float64 {
	if a.TotalOrders == 0 {
		return nil
	}
	r := float64(a.NonAdaptCount) / float64(a.TotalOrders)
	return &r
}

// RemakeRate returns remakeCount/totalOrders, or nil when there are no orders.
func (a *LensFrameAnalytic) RemakeRate() *float64 {
	if a.TotalOrders == 0 {
		return nil
	}
	r := float64(a.RemakeCount) / float64(a.TotalOrders)
	return &r
}

// AverageRemakeDays returns the mean days-to-remake over the remade orders
// that reported a day count, or nil when none did. Remakes reported without
// days increment RemakeCount but must not drag the average toward zero.
func (a *LensFrameAnalytic) AverageRemakeDays() *float64 {
	if a.RemakeDaysCount == 0 {
		return nil
	}
	d := float64(a.RemakeDaysTotal) / float64(a.RemakeDaysCount)
	return &d
}

// OutcomeEvent is the inbound "order outcome reported" contract. Delivery is
// at-least-once; OutcomeID is the dedupe key that makes RecordOutcome
// idempotent under re-delivery.
type OutcomeEvent struct {
	OutcomeID    string    `json:"outcome_id"`
	LensType     string    `json:"lens_type"`
	LensMaterial string    `json:"lens_material"`
	FrameType    string    `json:"frame_type"`
	NonAdapt     bool      `json:"non_adapt"`
	Remade       bool      `json:"remade"`
	RemakeDays   *int      `json:"remake_days,omitempty"`
	ReportedAt   time.Time `json:"reported_at"`
}
