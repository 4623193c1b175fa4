package vehicles

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel classifies a vehicle's aggregated risk score
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Status is the lifecycle state of a vehicle record
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// Risk scoring weights and thresholds
const (
	TamperingPenalty  = 40
	AccidentPenalty   = 20
	OwnerChurnPenalty = 25
	MaxRiskScore      = 100
	BlockThreshold    = 90

	// OwnerChurnWindow is how far back ownership-start records count toward churn
	OwnerChurnWindow = 3 * 365 * 24 * time.Hour
	// OwnerChurnLimit is the number of owners above which churn is penalized
	OwnerChurnLimit = 4
)

// Vehicle represents a tracked vehicle and its provenance risk state.
// RiskLevel and Status are derived from RiskScore and are never set directly.
type Vehicle struct {
	ID                   uuid.UUID `json:"id"`
	VIN                  string    `json:"vin"`
	Make                 string    `json:"make"`
	Model                string    `json:"model"`
	Year                 int       `json:"year"`
	Color                *string   `json:"color,omitempty"`
	EngineType           *string   `json:"engine_type,omitempty"`
	Transmission         *string   `json:"transmission,omitempty"`
	FuelType             *string   `json:"fuel_type,omitempty"`
	CurrentMileage       int       `json:"current_mileage"`
	MileageUnit          string    `json:"mileage_unit"`
	Description          *string   `json:"description,omitempty"`
	OwnershipDocumentURL *string   `json:"ownership_document_url,omitempty"`
	Status               Status    `json:"status"`
	RiskScore            int       `json:"risk_score"`
	RiskLevel            RiskLevel `json:"risk_level"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Owner is an ownership record for a vehicle
type Owner struct {
	ID             uuid.UUID  `json:"id"`
	VehicleID      uuid.UUID  `json:"vehicle_id"`
	UserID         uuid.UUID  `json:"user_id"`
	StartedMileage *int       `json:"started_mileage,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	IsCurrent      bool       `json:"is_current"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Incident is a detected anomaly recorded against a vehicle. Incidents are
// append-only; the risk scorer reads them but never mutates them.
type Incident struct {
	ID            uuid.UUID `json:"id"`
	VehicleID     uuid.UUID `json:"vehicle_id"`
	Kind          string    `json:"kind"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	Mileage       *int      `json:"mileage,omitempty"`
	VerifiedByIoT bool      `json:"verified_by_iot"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CreateVehicleRequest is the payload for registering a vehicle
type CreateVehicleRequest struct {
	VIN                  string  `json:"vin" binding:"required,vin"`
	Make                 string  `json:"make" binding:"required"`
	Model                string  `json:"model" binding:"required"`
	Year                 int     `json:"year" binding:"required,gte=1900,lte=2100"`
	Color                *string `json:"color,omitempty"`
	EngineType           *string `json:"engine_type,omitempty"`
	Transmission         *string `json:"transmission,omitempty"`
	FuelType             *string `json:"fuel_type,omitempty"`
	CurrentMileage       *int    `json:"current_mileage,omitempty" binding:"omitempty,gte=0"`
	MileageUnit          string  `json:"mileage_unit,omitempty" binding:"omitempty,oneof=km mi"`
	Description          *string `json:"description,omitempty"`
	OwnershipDocumentURL *string `json:"ownership_document_url,omitempty"`
}

// UpdateVehicleRequest is the payload for updating mutable vehicle fields
type UpdateVehicleRequest struct {
	CurrentMileage       *int    `json:"current_mileage,omitempty" binding:"omitempty,gte=0"`
	Color                *string `json:"color,omitempty"`
	Description          *string `json:"description,omitempty"`
	OwnershipDocumentURL *string `json:"ownership_document_url,omitempty"`
}

// RiskReport is the aggregated risk view returned to callers
type RiskReport struct {
	VehicleID uuid.UUID   `json:"vehicle_id"`
	VIN       string      `json:"vin"`
	RiskScore int         `json:"risk_score"`
	RiskLevel RiskLevel   `json:"risk_level"`
	Status    Status      `json:"status"`
	Incidents []*Incident `json:"incidents"`
}

// HighRiskVehicle is a row in the high-risk listing
type HighRiskVehicle struct {
	VIN                string    `json:"vin"`
	Make               string    `json:"make"`
	Model              string    `json:"model"`
	Year               int       `json:"year"`
	RiskScore          int       `json:"risk_score"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Status             Status    `json:"status"`
	CurrentMileage     int       `json:"current_mileage"`
	TamperingIncidents int       `json:"tampering_incidents"`
	Recommendation     string    `json:"recommendation"`
}

// LevelForScore maps a risk score to its discrete level
func LevelForScore(score int) RiskLevel {
	switch {
	case score <= 30:
		return RiskLevelLow
	case score <= 70:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

// StatusForScore derives the vehicle status from its risk score
func StatusForScore(score int) Status {
	if score >= BlockThreshold {
		return StatusBlocked
	}
	return StatusActive
}
