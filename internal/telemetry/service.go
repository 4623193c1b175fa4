package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/NureSalohubAndrii/carvision/internal/events"
	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/NureSalohubAndrii/carvision/pkg/locks"
	"github.com/NureSalohubAndrii/carvision/pkg/logger"
	redisclient "github.com/NureSalohubAndrii/carvision/pkg/redis"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	latestCacheTTL = 60 * time.Second
	// a device that reported within this window counts as connected
	connectedWindow = time.Hour
)

func latestCacheKey(vehicleID uuid.UUID) string {
	return fmt.Sprintf("telemetry:latest:%s", vehicleID)
}

// scale100 converts a decimal API value into its stored scaled-integer form
func scale100(v float64) int {
	return int(math.Round(v * 100))
}

// Service handles the device telemetry pipeline: ingestion, the
// telemetry-side tampering detector, threshold alerts and device config
type Service struct {
	repo     TelemetryRepository
	vehicles VehicleGateway
	ledger   Ledger
	cache    *redisclient.Client
	locks    *locks.Keyed
}

// NewService creates a new telemetry service. cache may be nil; caching is
// then skipped.
func NewService(repo TelemetryRepository, vehicles VehicleGateway, ledger Ledger, cache *redisclient.Client, vehicleLocks *locks.Keyed) *Service {
	return &Service{
		repo:     repo,
		vehicles: vehicles,
		ledger:   ledger,
		cache:    cache,
		locks:    vehicleLocks,
	}
}

// Ingest processes one device reading. Unlike manual events, a rollback does
// not reject the reading: the device said what it said, the row is stored as
// evidence and flagged. The reference is the latest prior reading, which
// under the per-vehicle lock is also the running maximum of the stream.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, req.VIN)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	s.locks.Lock(vehicle.ID.String())
	defer s.locks.Unlock(vehicle.ID.String())

	recordedAt := time.Now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	resp := &IngestResponse{}

	// the first reading for a vehicle has no reference; any other read
	// failure must not silently skip the tampering detector
	latest, err := s.repo.Latest(ctx, vehicle.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewInternalServerError("failed to read latest telemetry")
	}
	if latest != nil {
		if req.Mileage < latest.Mileage {
			resp.TamperingDetected = true
			if err := s.flagRollback(ctx, vehicle.ID, latest.Mileage, req.Mileage); err != nil {
				return nil, err
			}
		} else if req.Mileage > latest.Mileage {
			if err := s.flagImplausibleRate(ctx, vehicle.ID, latest, req.Mileage, recordedAt); err != nil {
				return nil, err
			}
		}
	}

	reading := &Telemetry{
		ID:             uuid.New(),
		VehicleID:      vehicle.ID,
		Mileage:        req.Mileage,
		FuelLevel:      req.FuelLevel,
		BatteryVoltage: req.BatteryVoltage,
		Humidity:       req.Humidity,
		EngineStatus:   req.EngineStatus,
		RecordedAt:     recordedAt,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.Insert(ctx, reading); err != nil {
		return nil, common.NewInternalServerError("failed to store telemetry")
	}
	resp.TelemetryID = reading.ID

	advanced, err := s.vehicles.AdvanceMileage(ctx, vehicle.ID, req.Mileage)
	if err != nil {
		return nil, common.NewInternalServerError("failed to advance mileage")
	}
	resp.MileageUpdated = advanced

	if req.EngineStatus != nil {
		description := fmt.Sprintf("Engine %s at %d km", *req.EngineStatus, req.Mileage)
		if err := s.ledger.RecordOperationalEvent(ctx, vehicle.ID, events.EventTypeTripUpdate, events.SeverityLow, description, &req.Mileage, true); err != nil {
			return nil, common.NewInternalServerError("failed to record trip event")
		}
	}

	alerts, err := s.evaluateAlerts(ctx, vehicle.ID, req)
	if err != nil {
		return nil, err
	}
	resp.Alerts = alerts

	s.cacheLatest(ctx, vehicle.ID, reading)

	return resp, nil
}

// flagRollback records a telemetry-verified tampering incident, deduplicated
// per vehicle over a rolling 24h window, and recomputes the risk score.
// Only prior critical incidents suppress it; an informational rate flag
// within the window must not mask a genuine rollback.
func (s *Service) flagRollback(ctx context.Context, vehicleID uuid.UUID, prior, reported int) error {
	since := time.Now().Add(-IncidentDedupWindow)
	recent, err := s.ledger.CountRecentByType(ctx, vehicleID, events.EventTypeMileageTampering, events.SeverityCritical, since)
	if err != nil {
		return common.NewInternalServerError("failed to check incident history")
	}
	if recent > 0 {
		return nil
	}

	description := fmt.Sprintf("Mileage rollback detected: %d → %d km", prior, reported)
	if err := s.ledger.RecordOperationalEvent(ctx, vehicleID, events.EventTypeMileageTampering, events.SeverityCritical, description, &reported, true); err != nil {
		return common.NewInternalServerError("failed to record tampering incident")
	}
	events.RecordTamperingIncident("telemetry")

	if _, err := s.vehicles.RecomputeRisk(ctx, vehicleID); err != nil {
		return err
	}

	logger.WithContext(ctx).Warn("Telemetry mileage rollback",
		zap.String("vehicle_id", vehicleID.String()),
		zap.Int("previous_mileage", prior),
		zap.Int("reported_mileage", reported),
	)
	return nil
}

// flagImplausibleRate records an informational incident when the odometer
// moved faster than any real car drives. It does not touch the risk score:
// clock skew and batched uploads make this signal too noisy to punish.
func (s *Service) flagImplausibleRate(ctx context.Context, vehicleID uuid.UUID, latest *Telemetry, reported int, recordedAt time.Time) error {
	deltaDays := recordedAt.Sub(latest.RecordedAt).Hours() / 24
	if deltaDays <= 0 {
		return nil
	}
	dailyRate := float64(reported-latest.Mileage) / deltaDays
	if dailyRate <= MaxDailyKm {
		return nil
	}

	description := fmt.Sprintf("Implausible mileage increase: %.0f km/day", dailyRate)
	if err := s.ledger.RecordOperationalEvent(ctx, vehicleID, events.EventTypeMileageTampering, events.SeverityHigh, description, &reported, true); err != nil {
		return common.NewInternalServerError("failed to record rate incident")
	}
	return nil
}

// evaluateAlerts compares a reading against the vehicle's device thresholds
func (s *Service) evaluateAlerts(ctx context.Context, vehicleID uuid.UUID, req *IngestRequest) ([]string, error) {
	cfg, err := s.getOrCreateConfig(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	var alerts []string

	if req.BatteryVoltage != nil && *req.BatteryVoltage < float64(cfg.BatteryThreshold)/100 {
		alerts = append(alerts, fmt.Sprintf("battery voltage low: %.2f V", *req.BatteryVoltage))
		description := fmt.Sprintf("Battery voltage %.2f V below threshold %.2f V", *req.BatteryVoltage, float64(cfg.BatteryThreshold)/100)
		if err := s.recordMaintenanceIncident(ctx, vehicleID, events.EventTypeMaintenanceBattery, events.SeverityMedium, description); err != nil {
			return nil, err
		}
	}

	if req.Humidity != nil && *req.Humidity > float64(cfg.HumidityThreshold)/100 {
		alerts = append(alerts, fmt.Sprintf("cabin humidity high: %.1f%%", *req.Humidity))
		description := fmt.Sprintf("Humidity %.1f%% above threshold %.1f%%, possible water leak", *req.Humidity, float64(cfg.HumidityThreshold)/100)
		if err := s.recordMaintenanceIncident(ctx, vehicleID, events.EventTypeMaintenanceLeak, events.SeverityHigh, description); err != nil {
			return nil, err
		}
	}

	// fuel is advisory only, no ledger entry
	if req.FuelLevel != nil && *req.FuelLevel < float64(cfg.FuelThreshold) {
		alerts = append(alerts, fmt.Sprintf("fuel level low: %.1f%%", *req.FuelLevel))
	}

	return alerts, nil
}

func (s *Service) recordMaintenanceIncident(ctx context.Context, vehicleID uuid.UUID, eventType events.EventType, severity events.Severity, description string) error {
	since := time.Now().Add(-IncidentDedupWindow)
	recent, err := s.ledger.CountRecentByType(ctx, vehicleID, eventType, severity, since)
	if err != nil {
		return common.NewInternalServerError("failed to check incident history")
	}
	if recent > 0 {
		return nil
	}
	if err := s.ledger.RecordOperationalEvent(ctx, vehicleID, eventType, severity, description, nil, true); err != nil {
		return common.NewInternalServerError("failed to record maintenance incident")
	}
	return nil
}

func (s *Service) cacheLatest(ctx context.Context, vehicleID uuid.UUID, reading *Telemetry) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(reading)
	if err != nil {
		return
	}
	if err := s.cache.SetWithExpiration(ctx, latestCacheKey(vehicleID), payload, latestCacheTTL); err != nil {
		logger.Debug("failed to cache latest telemetry", zap.Error(err))
	}
}

// GetLatest returns the freshest reading for a vehicle with a connectivity
// flag. Served from cache when the snapshot is fresh enough.
func (s *Service) GetLatest(ctx context.Context, vin string) (*LatestSnapshot, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	if s.cache != nil {
		if raw, err := s.cache.GetString(ctx, latestCacheKey(vehicle.ID)); err == nil {
			var cached Telemetry
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &LatestSnapshot{
					Telemetry:    &cached,
					IoTConnected: time.Since(cached.RecordedAt) <= connectedWindow,
				}, nil
			}
		}
	}

	latest, err := s.repo.Latest(ctx, vehicle.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("no telemetry recorded for this vehicle", err)
	}
	if err != nil {
		return nil, common.NewInternalServerError("failed to read latest telemetry")
	}

	s.cacheLatest(ctx, vehicle.ID, latest)

	return &LatestSnapshot{
		Telemetry:    latest,
		IoTConnected: time.Since(latest.RecordedAt) <= connectedWindow,
	}, nil
}

// GetHistory lists recent readings, newest first
func (s *Service) GetHistory(ctx context.Context, vin string, limit int) ([]*Telemetry, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	history, err := s.repo.History(ctx, vehicle.ID, limit)
	if err != nil {
		return nil, common.NewInternalServerError("failed to list telemetry history")
	}
	return history, nil
}

// GetUsageStats aggregates driving activity over the trailing N days
func (s *Service) GetUsageStats(ctx context.Context, vin string, days int) (*UsageStats, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	if days <= 0 || days > 365 {
		days = 30
	}

	since := time.Now().AddDate(0, 0, -days)
	readings, err := s.repo.ListSince(ctx, vehicle.ID, since)
	if err != nil {
		return nil, common.NewInternalServerError("failed to list telemetry")
	}

	stats := &UsageStats{Days: days, Readings: len(readings)}
	if len(readings) >= 2 {
		// span of the window, not last-minus-first: a rollback inside the
		// window would otherwise understate real driving before it
		minMileage, maxMileage := readings[0].Mileage, readings[0].Mileage
		for _, r := range readings[1:] {
			if r.Mileage < minMileage {
				minMileage = r.Mileage
			}
			if r.Mileage > maxMileage {
				maxMileage = r.Mileage
			}
		}
		stats.TotalDriven = maxMileage - minMileage
		stats.AvgDailyKm = float64(stats.TotalDriven) / float64(days)
	}
	for _, r := range readings {
		if r.EngineStatus != nil && *r.EngineStatus == "start" {
			stats.EngineStarts++
		}
	}
	return stats, nil
}

// GetTamperingHistory lists a vehicle's tampering incidents by VIN
func (s *Service) GetTamperingHistory(ctx context.Context, vin string) ([]*events.Event, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	eventType := events.EventTypeMileageTampering
	incidents, _, err := s.ledger.ListByVehicle(ctx, vehicle.ID, &events.ListFilter{
		EventType: &eventType,
		Limit:     100,
	})
	if err != nil {
		return nil, common.NewInternalServerError("failed to list tampering incidents")
	}
	return incidents, nil
}

// Sync hands a device its configuration, lazily creating defaults on first
// contact, and records the sync time
func (s *Service) Sync(ctx context.Context, vin string) (*SyncResponse, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	cfg, err := s.getOrCreateConfig(ctx, vehicle.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.repo.TouchLastSync(ctx, vehicle.ID, now); err != nil {
		return nil, common.NewInternalServerError("failed to record sync")
	}
	cfg.LastSyncAt = &now

	return &SyncResponse{Config: cfg.View(), SyncedAt: now}, nil
}

// GetConfig returns a vehicle's device configuration
func (s *Service) GetConfig(ctx context.Context, vin string) (*DeviceConfig, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}
	return s.getOrCreateConfig(ctx, vehicle.ID)
}

// UpdateDeviceConfig mutates device settings
func (s *Service) UpdateDeviceConfig(ctx context.Context, vin string, req *UpdateConfigRequest) (*DeviceConfig, error) {
	vehicle, err := s.vehicles.GetByVIN(ctx, vin)
	if err != nil {
		return nil, common.NewNotFoundError("vehicle not found", err)
	}

	cfg, err := s.getOrCreateConfig(ctx, vehicle.ID)
	if err != nil {
		return nil, err
	}

	if req.TelemetryIntervalSec != nil {
		cfg.TelemetryIntervalSec = *req.TelemetryIntervalSec
	}
	if req.BatteryThresholdVolts != nil {
		cfg.BatteryThreshold = scale100(*req.BatteryThresholdVolts)
	}
	if req.HumidityThresholdPct != nil {
		cfg.HumidityThreshold = scale100(*req.HumidityThresholdPct)
	}
	if req.FuelThresholdPct != nil {
		cfg.FuelThreshold = *req.FuelThresholdPct
	}
	if req.BatterySmoothingAlpha != nil {
		cfg.BatterySmoothingAlpha = scale100(*req.BatterySmoothingAlpha)
	}
	if req.MileageSmoothingAlpha != nil {
		cfg.MileageSmoothingAlpha = scale100(*req.MileageSmoothingAlpha)
	}

	if err := s.repo.UpdateConfig(ctx, cfg); err != nil {
		return nil, common.NewInternalServerError("failed to update device config")
	}
	return cfg, nil
}

func (s *Service) getOrCreateConfig(ctx context.Context, vehicleID uuid.UUID) (*DeviceConfig, error) {
	cfg, err := s.repo.GetConfig(ctx, vehicleID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewInternalServerError("failed to read device config")
	}

	now := time.Now()
	cfg = &DeviceConfig{
		ID:                    uuid.New(),
		VehicleID:             vehicleID,
		TelemetryIntervalSec:  DefaultTelemetryIntervalSec,
		BatteryThreshold:      DefaultBatteryThreshold,
		HumidityThreshold:     DefaultHumidityThreshold,
		FuelThreshold:         DefaultFuelThreshold,
		BatterySmoothingAlpha: DefaultBatterySmoothingAlpha,
		MileageSmoothingAlpha: DefaultMileageSmoothingAlpha,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.CreateConfig(ctx, cfg); err != nil {
		return nil, common.NewInternalServerError("failed to create device config")
	}
	return cfg, nil
}
