package reports

import (
	"time"

	"github.com/google/uuid"
)

// CheckType is the report tier a buyer paid for
type CheckType string

const (
	CheckTypeBasic    CheckType = "basic"
	CheckTypeExtended CheckType = "extended"
	CheckTypePremium  CheckType = "premium"
)

// basicEventLimit is how many key events a basic report includes
const basicEventLimit = 5

// Check is a record of a generated report
type Check struct {
	ID        uuid.UUID `json:"id"`
	VehicleID uuid.UUID `json:"vehicle_id"`
	UserID    uuid.UUID `json:"user_id"`
	CheckType CheckType `json:"check_type"`
	CreatedAt time.Time `json:"created_at"`
}

// VehicleProfile is the vehicle summary embedded in a report
type VehicleProfile struct {
	VIN            string `json:"vin"`
	Make           string `json:"make"`
	Model          string `json:"model"`
	Year           int    `json:"year"`
	CurrentMileage int    `json:"current_mileage"`
	MileageUnit    string `json:"mileage_unit"`
	RiskScore      int    `json:"risk_score"`
	RiskLevel      string `json:"risk_level"`
	Status         string `json:"status"`
}

// ReportEvent is a history entry included in a report
type ReportEvent struct {
	EventType     string    `json:"event_type"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	Mileage       *int      `json:"mileage,omitempty"`
	VerifiedByIoT bool      `json:"verified_by_iot"`
	EventDate     time.Time `json:"event_date"`
}

// OwnershipPeriod is one entry of the owner timeline
type OwnershipPeriod struct {
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	StartedMileage *int       `json:"started_mileage,omitempty"`
	IsCurrent      bool       `json:"is_current"`
}

// Recommendation is buying advice derived from the vehicle's risk profile
type Recommendation struct {
	Level   string `json:"level"` // low | medium | high | critical
	Message string `json:"message"`
}

// Report is a tiered provenance report for a prospective buyer
type Report struct {
	CheckType       CheckType          `json:"check_type"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Vehicle         *VehicleProfile    `json:"vehicle"`
	Events          []*ReportEvent     `json:"events"`
	Owners          []*OwnershipPeriod `json:"owners,omitempty"`
	Recommendations []*Recommendation  `json:"recommendations"`
}

// GenerateReportRequest is the payload for POST /reports/:vin
type GenerateReportRequest struct {
	CheckType CheckType `json:"check_type" binding:"required,oneof=basic extended premium"`
}
