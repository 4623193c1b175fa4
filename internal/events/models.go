package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies entries in the vehicle history ledger
type EventType string

const (
	EventTypeAccident           EventType = "accident"
	EventTypeMaintenance        EventType = "maintenance"
	EventTypeInspection         EventType = "inspection"
	EventTypeOwnershipChange    EventType = "ownership_change"
	EventTypeTripUpdate         EventType = "trip_update"
	EventTypeMileageTampering   EventType = "mileage_tampering"
	EventTypeMaintenanceBattery EventType = "maintenance_battery"
	EventTypeMaintenanceLeak    EventType = "maintenance_leak"
)

// Severity grades an event
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event is a single entry in a vehicle's append-only history ledger.
// Mileage values are never edited or deleted once recorded; only the
// descriptive fields are mutable.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	VehicleID     uuid.UUID  `json:"vehicle_id"`
	EventType     EventType  `json:"event_type"`
	Severity      Severity   `json:"severity"`
	Description   string     `json:"description"`
	Mileage       *int       `json:"mileage,omitempty"`
	Cost          *float64   `json:"cost,omitempty"`
	DocumentURL   *string    `json:"document_url,omitempty"`
	VerifiedByIoT bool       `json:"verified_by_iot"`
	EventDate     time.Time  `json:"event_date"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateEventRequest is the payload for recording a history event
type CreateEventRequest struct {
	EventType   EventType  `json:"event_type" binding:"required,oneof=accident maintenance inspection ownership_change trip_update"`
	Severity    Severity   `json:"severity,omitempty" binding:"omitempty,oneof=low medium high critical"`
	Description string     `json:"description" binding:"required"`
	Mileage     *int       `json:"mileage,omitempty" binding:"omitempty,gte=0"`
	Cost        *float64   `json:"cost,omitempty" binding:"omitempty,gte=0"`
	DocumentURL *string    `json:"document_url,omitempty"`
	EventDate   *time.Time `json:"event_date,omitempty"`
}

// UpdateEventRequest is the payload for amending an event's descriptive
// fields. Mileage is deliberately absent: recorded readings are immutable.
type UpdateEventRequest struct {
	Severity    *Severity `json:"severity,omitempty" binding:"omitempty,oneof=low medium high critical"`
	Description *string   `json:"description,omitempty"`
	Cost        *float64  `json:"cost,omitempty" binding:"omitempty,gte=0"`
	DocumentURL *string   `json:"document_url,omitempty"`
}

// ListFilter narrows event listings
type ListFilter struct {
	EventType *EventType
	Severity  *Severity
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
