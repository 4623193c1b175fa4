package vehicles

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VehicleRepository is the persistence contract for vehicle records
type VehicleRepository interface {
	Create(ctx context.Context, vehicle *Vehicle) error
	GetByID(ctx context.Context, vehicleID uuid.UUID) (*Vehicle, error)
	GetByVIN(ctx context.Context, vin string) (*Vehicle, error)
	UpdateProfile(ctx context.Context, vehicle *Vehicle) error
	UpdateRisk(ctx context.Context, vehicleID uuid.UUID, score int, level RiskLevel, status Status) error
	AdvanceMileage(ctx context.Context, vehicleID uuid.UUID, mileage int) (bool, error)

	CountTamperingIncidents(ctx context.Context, vehicleID uuid.UUID) (int, error)
	CountHighSeverityAccidents(ctx context.Context, vehicleID uuid.UUID) (int, error)
	CountOwnersStartedSince(ctx context.Context, vehicleID uuid.UUID, since time.Time) (int, error)
	ListIncidents(ctx context.Context, vehicleID uuid.UUID) ([]*Incident, error)

	CreateOwner(ctx context.Context, owner *Owner) error
	GetCurrentOwner(ctx context.Context, vehicleID uuid.UUID) (*Owner, error)
	ListHighRisk(ctx context.Context, minScore, limit int) ([]*HighRiskVehicle, error)
}

// UserDirectory confirms user identities for attribution
type UserDirectory interface {
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
}

// IncidentRecorder persists a tampering incident detected outside the events
// package (vehicle profile updates). Implemented by events.Repository.
type IncidentRecorder interface {
	RecordIncident(ctx context.Context, vehicleID uuid.UUID, severity, description string, mileage int, verifiedByIoT bool) error
}
