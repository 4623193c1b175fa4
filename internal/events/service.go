package events

import (
	"context"
	"fmt"
	"time"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/NureSalohubAndrii/carvision/pkg/locks"
	"github.com/NureSalohubAndrii/carvision/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service handles the manual history ledger and its tampering detector
type Service struct {
	repo     EventRepository
	vehicles VehicleGateway
	locks    *locks.Keyed
}

// NewService creates a new event service
func NewService(repo EventRepository, vehicles VehicleGateway, vehicleLocks *locks.Keyed) *Service {
	return &Service{
		repo:     repo,
		vehicles: vehicles,
		locks:    vehicleLocks,
	}
}

// Create records a manual history event. When the event carries a mileage
// reading, it is checked against the highest reading ever recorded for the
// vehicle: a lower value is fraud, so the incident is persisted, the risk
// score recomputed, and the triggering event itself rejected. The whole
// read-check-write sequence holds the per-vehicle lock so two concurrent
// submissions cannot both pass the check.
func (s *Service) Create(ctx context.Context, vehicleID, userID uuid.UUID, req *CreateEventRequest) (*Event, error) {
	s.locks.Lock(vehicleID.String())
	defer s.locks.Unlock(vehicleID.String())

	if _, err := s.vehicles.GetByID(ctx, vehicleID); err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	if req.Mileage != nil {
		prior, found, err := s.repo.MaxRecordedMileage(ctx, vehicleID)
		if err != nil {
			return nil, common.NewInternalServerError("failed to read mileage history")
		}
		if found && *req.Mileage < prior {
			description := fmt.Sprintf("Mileage rollback detected: %d → %d km", prior, *req.Mileage)
			if err := s.repo.RecordOperationalEvent(ctx, vehicleID, EventTypeMileageTampering, SeverityCritical, description, req.Mileage, false); err != nil {
				return nil, common.NewInternalServerError("failed to record tampering incident")
			}
			RecordTamperingIncident("manual")

			if _, err := s.vehicles.RecomputeRisk(ctx, vehicleID); err != nil {
				return nil, err
			}

			logger.WithContext(ctx).Warn("Rejected event with mileage rollback",
				zap.String("vehicle_id", vehicleID.String()),
				zap.Int("previous_mileage", prior),
				zap.Int("reported_mileage", *req.Mileage),
			)

			return nil, common.NewFraudRejectionError("mileage rollback detected", map[string]interface{}{
				"previous_mileage": prior,
				"reported_mileage": *req.Mileage,
			})
		}
	}

	severity := req.Severity
	if severity == "" {
		severity = SeverityLow
	}
	eventDate := time.Now()
	if req.EventDate != nil {
		eventDate = *req.EventDate
	}

	now := time.Now()
	event := &Event{
		ID:          uuid.New(),
		VehicleID:   vehicleID,
		EventType:   req.EventType,
		Severity:    severity,
		Description: req.Description,
		Mileage:     req.Mileage,
		Cost:        req.Cost,
		DocumentURL: req.DocumentURL,
		EventDate:   eventDate,
		CreatedBy:   &userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, common.NewInternalServerError("failed to create event")
	}

	if req.Mileage != nil {
		if _, err := s.vehicles.AdvanceMileage(ctx, vehicleID, *req.Mileage); err != nil {
			return nil, common.NewInternalServerError("failed to advance mileage")
		}
	}

	if _, err := s.vehicles.RecomputeRisk(ctx, vehicleID); err != nil {
		return nil, err
	}

	return event, nil
}

// GetByID gets an event by ID
func (s *Service) GetByID(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, common.NewNotFoundError("event not found", err)
	}
	return event, nil
}

// ListByVehicle lists a vehicle's events newest first
func (s *Service) ListByVehicle(ctx context.Context, vehicleID uuid.UUID, filter *ListFilter) ([]*Event, int64, error) {
	if _, err := s.vehicles.GetByID(ctx, vehicleID); err != nil {
		return nil, 0, common.NewNotFoundError("vehicle not found", err)
	}

	events, total, err := s.repo.ListByVehicle(ctx, vehicleID, filter)
	if err != nil {
		return nil, 0, common.NewInternalServerError("failed to list events")
	}
	return events, total, nil
}

// Update amends an event's descriptive fields. Recorded mileage is
// immutable, and only the original author may amend an entry.
func (s *Service) Update(ctx context.Context, eventID, userID uuid.UUID, req *UpdateEventRequest) (*Event, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, common.NewNotFoundError("event not found", err)
	}
	if event.CreatedBy == nil || *event.CreatedBy != userID {
		return nil, common.NewForbiddenError("only the event author can amend it")
	}

	if req.Severity != nil {
		event.Severity = *req.Severity
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Cost != nil {
		event.Cost = req.Cost
	}
	if req.DocumentURL != nil {
		event.DocumentURL = req.DocumentURL
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, common.NewInternalServerError("failed to update event")
	}

	// severity changes can move the accident contribution
	if _, err := s.vehicles.RecomputeRisk(ctx, event.VehicleID); err != nil {
		return nil, err
	}

	return event, nil
}

// Delete removes an event and recomputes the vehicle's risk from the
// remaining facts
func (s *Service) Delete(ctx context.Context, eventID, userID uuid.UUID) error {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return common.NewNotFoundError("event not found", err)
	}
	if event.CreatedBy == nil || *event.CreatedBy != userID {
		return common.NewForbiddenError("only the event author can delete it")
	}

	if err := s.repo.Delete(ctx, eventID); err != nil {
		return common.NewInternalServerError("failed to delete event")
	}

	if _, err := s.vehicles.RecomputeRisk(ctx, event.VehicleID); err != nil {
		return err
	}
	return nil
}
