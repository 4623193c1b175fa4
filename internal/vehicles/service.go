package vehicles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/NureSalohubAndrii/carvision/pkg/locks"
	"github.com/NureSalohubAndrii/carvision/pkg/logger"
	"github.com/NureSalohubAndrii/carvision/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service handles vehicle business logic and risk scoring
type Service struct {
	repo      VehicleRepository
	users     UserDirectory
	incidents IncidentRecorder
	locks     *locks.Keyed
}

// NewService creates a new vehicle service
func NewService(repo VehicleRepository, users UserDirectory, incidents IncidentRecorder, vehicleLocks *locks.Keyed) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		incidents: incidents,
		locks:     vehicleLocks,
	}
}

// Create registers a new vehicle and its initial ownership record
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *CreateVehicleRequest) (*Vehicle, error) {
	vin := strings.ToUpper(req.VIN)
	if !validation.ValidVIN(vin) {
		return nil, common.NewBadRequestError("invalid VIN format", nil)
	}

	if exists, err := s.users.Exists(ctx, userID); err != nil || !exists {
		return nil, common.NewForbiddenError("unknown reporting user")
	}

	if existing, err := s.repo.GetByVIN(ctx, vin); err == nil && existing != nil {
		return nil, common.NewConflictError("vehicle with this VIN already exists")
	}

	mileage := 0
	if req.CurrentMileage != nil {
		mileage = *req.CurrentMileage
	}

	unit := req.MileageUnit
	if unit == "" {
		unit = "km"
	}

	now := time.Now()
	vehicle := &Vehicle{
		ID:                   uuid.New(),
		VIN:                  vin,
		Make:                 req.Make,
		Model:                req.Model,
		Year:                 req.Year,
		Color:                req.Color,
		EngineType:           req.EngineType,
		Transmission:         req.Transmission,
		FuelType:             req.FuelType,
		CurrentMileage:       mileage,
		MileageUnit:          unit,
		Description:          req.Description,
		OwnershipDocumentURL: req.OwnershipDocumentURL,
		Status:               StatusActive,
		RiskScore:            0,
		RiskLevel:            RiskLevelLow,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, vehicle); err != nil {
		return nil, common.NewInternalServerError("failed to create vehicle")
	}

	owner := &Owner{
		ID:        uuid.New(),
		VehicleID: vehicle.ID,
		UserID:    userID,
		StartedAt: now,
		IsCurrent: true,
		CreatedAt: now,
	}
	if req.CurrentMileage != nil {
		owner.StartedMileage = req.CurrentMileage
	}

	if err := s.repo.CreateOwner(ctx, owner); err != nil {
		return nil, common.NewInternalServerError("failed to record initial owner")
	}

	logger.Info("Vehicle registered",
		zap.String("vehicle_id", vehicle.ID.String()),
		zap.String("vin", vehicle.VIN),
	)

	return vehicle, nil
}

// GetByID gets a vehicle by ID
func (s *Service) GetByID(ctx context.Context, vehicleID uuid.UUID) (*Vehicle, error) {
	vehicle, err := s.repo.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}
	return vehicle, nil
}

// GetByVIN gets a vehicle by VIN
func (s *Service) GetByVIN(ctx context.Context, vin string) (*Vehicle, error) {
	vehicle, err := s.repo.GetByVIN(ctx, strings.ToUpper(vin))
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}
	return vehicle, nil
}

// Update updates mutable profile fields. An odometer value lower than the
// stored one is flagged as tampering and recomputes the risk score, but the
// update itself proceeds: profile edits are owner-asserted corrections, not
// ledger observations.
func (s *Service) Update(ctx context.Context, vehicleID, userID uuid.UUID, req *UpdateVehicleRequest) (*Vehicle, error) {
	s.locks.Lock(vehicleID.String())
	defer s.locks.Unlock(vehicleID.String())

	vehicle, err := s.repo.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	owner, err := s.repo.GetCurrentOwner(ctx, vehicleID)
	if err != nil || owner.UserID != userID {
		return nil, common.NewForbiddenError("you are not the current owner of this vehicle")
	}

	if req.CurrentMileage != nil {
		newMileage := *req.CurrentMileage
		if newMileage < vehicle.CurrentMileage {
			// critical so the recompute below actually scores the rollback
			description := fmt.Sprintf("Mileage rollback detected: %d → %d km", vehicle.CurrentMileage, newMileage)
			if err := s.incidents.RecordIncident(ctx, vehicleID, "critical", description, newMileage, false); err != nil {
				return nil, common.NewInternalServerError("failed to record tampering incident")
			}
			if _, err := s.RecomputeRisk(ctx, vehicleID); err != nil {
				return nil, err
			}
		}
		vehicle.CurrentMileage = newMileage
	}
	if req.Color != nil {
		vehicle.Color = req.Color
	}
	if req.Description != nil {
		vehicle.Description = req.Description
	}
	if req.OwnershipDocumentURL != nil {
		vehicle.OwnershipDocumentURL = req.OwnershipDocumentURL
	}

	if err := s.repo.UpdateProfile(ctx, vehicle); err != nil {
		return nil, common.NewInternalServerError("failed to update vehicle")
	}

	return s.repo.GetByID(ctx, vehicleID)
}

// RecomputeRisk recalculates the vehicle risk score from current facts.
// It is a full recompute, not an increment, so it self-heals after incident
// deletions, and it derives risk level and status together so the three
// fields can never disagree.
func (s *Service) RecomputeRisk(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	tampering, err := s.repo.CountTamperingIncidents(ctx, vehicleID)
	if err != nil {
		return 0, common.NewInternalServerError("failed to count tampering incidents")
	}

	accidents, err := s.repo.CountHighSeverityAccidents(ctx, vehicleID)
	if err != nil {
		return 0, common.NewInternalServerError("failed to count accidents")
	}

	churnCutoff := time.Now().Add(-OwnerChurnWindow)
	owners, err := s.repo.CountOwnersStartedSince(ctx, vehicleID, churnCutoff)
	if err != nil {
		return 0, common.NewInternalServerError("failed to count ownership records")
	}

	score := tampering*TamperingPenalty + accidents*AccidentPenalty
	if owners > OwnerChurnLimit {
		score += OwnerChurnPenalty
	}
	if score > MaxRiskScore {
		score = MaxRiskScore
	}

	level := LevelForScore(score)
	status := StatusForScore(score)

	if err := s.repo.UpdateRisk(ctx, vehicleID, score, level, status); err != nil {
		return 0, common.NewInternalServerError("failed to store risk score")
	}

	if status == StatusBlocked {
		logger.WithContext(ctx).Warn("Vehicle blocked by risk score",
			zap.String("vehicle_id", vehicleID.String()),
			zap.Int("risk_score", score),
		)
	}

	return score, nil
}

// AdvanceMileage moves the odometer watermark forward. The watermark is
// monotonic: a value at or below the stored one is a no-op.
func (s *Service) AdvanceMileage(ctx context.Context, vehicleID uuid.UUID, mileage int) (bool, error) {
	return s.repo.AdvanceMileage(ctx, vehicleID, mileage)
}

// GetRiskReport returns the vehicle's current risk state and incident history
func (s *Service) GetRiskReport(ctx context.Context, vehicleID uuid.UUID) (*RiskReport, error) {
	vehicle, err := s.repo.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	incidents, err := s.repo.ListIncidents(ctx, vehicleID)
	if err != nil {
		return nil, common.NewInternalServerError("failed to list incidents")
	}

	return &RiskReport{
		VehicleID: vehicle.ID,
		VIN:       vehicle.VIN,
		RiskScore: vehicle.RiskScore,
		RiskLevel: vehicle.RiskLevel,
		Status:    vehicle.Status,
		Incidents: incidents,
	}, nil
}

// ListHighRisk lists vehicles at or above the review threshold
func (s *Service) ListHighRisk(ctx context.Context, limit int) ([]*HighRiskVehicle, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.repo.ListHighRisk(ctx, 60, limit)
	if err != nil {
		return nil, common.NewInternalServerError("failed to list high risk vehicles")
	}

	for _, v := range rows {
		if v.RiskScore >= BlockThreshold {
			v.Recommendation = "BLOCK IMMEDIATELY"
		} else {
			v.Recommendation = "REQUIRES VERIFICATION"
		}
	}

	return rows, nil
}
