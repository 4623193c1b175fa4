package telemetry

import (
	"context"
	"time"

	"github.com/NureSalohubAndrii/carvision/internal/events"
	"github.com/NureSalohubAndrii/carvision/internal/vehicles"
	"github.com/google/uuid"
)

// TelemetryRepository is the persistence contract for device readings and
// per-vehicle device configuration
type TelemetryRepository interface {
	Insert(ctx context.Context, t *Telemetry) error
	Latest(ctx context.Context, vehicleID uuid.UUID) (*Telemetry, error)
	History(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*Telemetry, error)
	ListSince(ctx context.Context, vehicleID uuid.UUID, since time.Time) ([]*Telemetry, error)

	GetConfig(ctx context.Context, vehicleID uuid.UUID) (*DeviceConfig, error)
	CreateConfig(ctx context.Context, cfg *DeviceConfig) error
	UpdateConfig(ctx context.Context, cfg *DeviceConfig) error
	TouchLastSync(ctx context.Context, vehicleID uuid.UUID, at time.Time) error
}

// VehicleGateway is what ingestion needs from the vehicles domain.
// Satisfied by vehicles.Service.
type VehicleGateway interface {
	GetByVIN(ctx context.Context, vin string) (*vehicles.Vehicle, error)
	GetByID(ctx context.Context, vehicleID uuid.UUID) (*vehicles.Vehicle, error)
	AdvanceMileage(ctx context.Context, vehicleID uuid.UUID, mileage int) (bool, error)
	RecomputeRisk(ctx context.Context, vehicleID uuid.UUID) (int, error)
}

// Ledger writes system-generated entries into the vehicle history ledger.
// Satisfied by events.Repository.
type Ledger interface {
	RecordOperationalEvent(ctx context.Context, vehicleID uuid.UUID, eventType events.EventType, severity events.Severity, description string, mileage *int, verifiedByIoT bool) error
	CountRecentByType(ctx context.Context, vehicleID uuid.UUID, eventType events.EventType, severity events.Severity, since time.Time) (int, error)
	ListByVehicle(ctx context.Context, vehicleID uuid.UUID, filter *events.ListFilter) ([]*events.Event, int64, error)
}
