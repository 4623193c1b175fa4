package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles telemetry and device config persistence
type Repository struct {
	db *pgxpool.Pool
}

var _ TelemetryRepository = (*Repository)(nil)

// NewRepository creates a new telemetry repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const telemetryColumns = `id, car_id, mileage, fuel_level, battery_voltage, humidity,
	engine_status, recorded_at, created_at`

func scanTelemetry(row pgx.Row) (*Telemetry, error) {
	var t Telemetry
	err := row.Scan(
		&t.ID, &t.VehicleID, &t.Mileage, &t.FuelLevel, &t.BatteryVoltage,
		&t.Humidity, &t.EngineStatus, &t.RecordedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert stores a telemetry reading
func (r *Repository) Insert(ctx context.Context, t *Telemetry) error {
	query := `
		INSERT INTO iot_telemetry (id, car_id, mileage, fuel_level, battery_voltage,
			humidity, engine_status, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		t.ID, t.VehicleID, t.Mileage, t.FuelLevel, t.BatteryVoltage,
		t.Humidity, t.EngineStatus, t.RecordedAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry: %w", err)
	}
	return nil
}

// Latest returns the newest reading for a vehicle. Ties on recorded_at are
// broken by insertion order.
func (r *Repository) Latest(ctx context.Context, vehicleID uuid.UUID) (*Telemetry, error) {
	query := `
		SELECT ` + telemetryColumns + ` FROM iot_telemetry
		WHERE car_id = $1
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT 1`

	t, err := scanTelemetry(r.db.QueryRow(ctx, query, vehicleID))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest telemetry: %w", err)
	}
	return t, nil
}

// History lists recent readings, newest first
func (r *Repository) History(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*Telemetry, error) {
	query := `
		SELECT ` + telemetryColumns + ` FROM iot_telemetry
		WHERE car_id = $1
		ORDER BY recorded_at DESC, created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list telemetry history: %w", err)
	}
	defer rows.Close()

	return collectTelemetry(rows)
}

// ListSince lists readings recorded at or after the given time, oldest first
func (r *Repository) ListSince(ctx context.Context, vehicleID uuid.UUID, since time.Time) ([]*Telemetry, error) {
	query := `
		SELECT ` + telemetryColumns + ` FROM iot_telemetry
		WHERE car_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC, created_at ASC`

	rows, err := r.db.Query(ctx, query, vehicleID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list telemetry: %w", err)
	}
	defer rows.Close()

	return collectTelemetry(rows)
}

func collectTelemetry(rows pgx.Rows) ([]*Telemetry, error) {
	var result []*Telemetry
	for rows.Next() {
		t, err := scanTelemetry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan telemetry: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

const configColumns = `id, car_id, telemetry_interval_sec, battery_threshold,
	humidity_threshold, fuel_threshold, battery_smoothing_alpha, mileage_smoothing_alpha,
	last_sync_at, created_at, updated_at`

// GetConfig gets a vehicle's device configuration
func (r *Repository) GetConfig(ctx context.Context, vehicleID uuid.UUID) (*DeviceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM iot_config WHERE car_id = $1`

	var cfg DeviceConfig
	err := r.db.QueryRow(ctx, query, vehicleID).Scan(
		&cfg.ID, &cfg.VehicleID, &cfg.TelemetryIntervalSec, &cfg.BatteryThreshold,
		&cfg.HumidityThreshold, &cfg.FuelThreshold, &cfg.BatterySmoothingAlpha,
		&cfg.MileageSmoothingAlpha, &cfg.LastSyncAt, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get device config: %w", err)
	}
	return &cfg, nil
}

// CreateConfig inserts a device configuration
func (r *Repository) CreateConfig(ctx context.Context, cfg *DeviceConfig) error {
	query := `
		INSERT INTO iot_config (id, car_id, telemetry_interval_sec, battery_threshold,
			humidity_threshold, fuel_threshold, battery_smoothing_alpha,
			mileage_smoothing_alpha, last_sync_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		cfg.ID, cfg.VehicleID, cfg.TelemetryIntervalSec, cfg.BatteryThreshold,
		cfg.HumidityThreshold, cfg.FuelThreshold, cfg.BatterySmoothingAlpha,
		cfg.MileageSmoothingAlpha, cfg.LastSyncAt, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device config: %w", err)
	}
	return nil
}

// UpdateConfig stores mutated device settings
func (r *Repository) UpdateConfig(ctx context.Context, cfg *DeviceConfig) error {
	query := `
		UPDATE iot_config
		SET telemetry_interval_sec = $1, battery_threshold = $2, humidity_threshold = $3,
			fuel_threshold = $4, battery_smoothing_alpha = $5, mileage_smoothing_alpha = $6,
			updated_at = $7
		WHERE car_id = $8`

	_, err := r.db.Exec(ctx, query,
		cfg.TelemetryIntervalSec, cfg.BatteryThreshold, cfg.HumidityThreshold,
		cfg.FuelThreshold, cfg.BatterySmoothingAlpha, cfg.MileageSmoothingAlpha,
		time.Now(), cfg.VehicleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device config: %w", err)
	}
	return nil
}

// TouchLastSync marks when a device last pulled its configuration
func (r *Repository) TouchLastSync(ctx context.Context, vehicleID uuid.UUID, at time.Time) error {
	query := `UPDATE iot_config SET last_sync_at = $1, updated_at = $1 WHERE car_id = $2`

	if _, err := r.db.Exec(ctx, query, at, vehicleID); err != nil {
		return fmt.Errorf("failed to touch last sync: %w", err)
	}
	return nil
}
