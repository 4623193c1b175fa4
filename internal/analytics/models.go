package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Anomaly detection thresholds on the z-score of mileage deltas
const (
	AnomalyZThreshold  = 2.0
	CriticalZThreshold = 3.0
)

// MileagePoint is one mileage observation on a vehicle's timeline
type MileagePoint struct {
	Mileage   int       `json:"mileage"`
	EventDate time.Time `json:"event_date"`
}

// Anomaly is a statistically unusual jump between two successive observations
type Anomaly struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Delta     int       `json:"delta_km"`
	DailyRate float64   `json:"daily_rate_km"`
	ZScore    float64   `json:"z_score"`
	Type      string    `json:"type"`     // rollback | unusually_high
	Severity  string    `json:"severity"` // high | critical
}

// AnomalyReport is the result of a statistical scan over a vehicle's history
type AnomalyReport struct {
	VehicleID uuid.UUID  `json:"vehicle_id"`
	Points    int        `json:"points"`
	MeanDelta float64    `json:"mean_delta_km"`
	StdDev    float64    `json:"std_dev_km"`
	Anomalies []*Anomaly `json:"anomalies"`
	Message   string     `json:"message,omitempty"`
}

// Forecast is a linear projection of a vehicle's mileage
type Forecast struct {
	VehicleID        uuid.UUID `json:"vehicle_id"`
	DaysAhead        int       `json:"days_ahead"`
	PredictedMileage float64   `json:"predicted_mileage"`
	Slope            float64   `json:"slope_km_per_day"`
	Intercept        float64   `json:"intercept"`
	RSquared         float64   `json:"r_squared"`
	Confidence       string    `json:"confidence"`
}
