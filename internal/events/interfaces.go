package events

import (
	"context"
	"time"

	"github.com/NureSalohubAndrii/carvision/internal/vehicles"
	"github.com/google/uuid"
)

// EventRepository is the persistence contract for the history ledger
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, eventID uuid.UUID) (*Event, error)
	ListByVehicle(ctx context.Context, vehicleID uuid.UUID, filter *ListFilter) ([]*Event, int64, error)
	MaxRecordedMileage(ctx context.Context, vehicleID uuid.UUID) (int, bool, error)
	CountRecentByType(ctx context.Context, vehicleID uuid.UUID, eventType EventType, severity Severity, since time.Time) (int, error)
	Update(ctx context.Context, event *Event) error
	Delete(ctx context.Context, eventID uuid.UUID) error
	RecordOperationalEvent(ctx context.Context, vehicleID uuid.UUID, eventType EventType, severity Severity, description string, mileage *int, verifiedByIoT bool) error
}

// VehicleGateway is what the ledger needs from the vehicles domain:
// existence, the monotonic odometer watermark and the risk recompute.
// Satisfied by vehicles.Service.
type VehicleGateway interface {
	GetByID(ctx context.Context, vehicleID uuid.UUID) (*vehicles.Vehicle, error)
	AdvanceMileage(ctx context.Context, vehicleID uuid.UUID, mileage int) (bool, error)
	RecomputeRisk(ctx context.Context, vehicleID uuid.UUID) (int, error)
}
