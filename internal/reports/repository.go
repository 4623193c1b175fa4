package reports

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRepository reads report source data and records generated checks
type ReportRepository interface {
	GetVehicleProfile(ctx context.Context, vin string) (uuid.UUID, *VehicleProfile, error)
	ListKeyEvents(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*ReportEvent, error)
	ListAllEvents(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*ReportEvent, error)
	ListOwners(ctx context.Context, vehicleID uuid.UUID) ([]*OwnershipPeriod, error)
	CountCriticalTampering(ctx context.Context, vehicleID uuid.UUID) (int, error)
	CountHighAccidents(ctx context.Context, vehicleID uuid.UUID) (int, error)
	InsertCheck(ctx context.Context, check *Check) error
}

// Repository reads report data straight from the domain tables
type Repository struct {
	db *pgxpool.Pool
}

var _ ReportRepository = (*Repository)(nil)

// NewRepository creates a new report repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetVehicleProfile resolves a VIN into the report's vehicle summary
func (r *Repository) GetVehicleProfile(ctx context.Context, vin string) (uuid.UUID, *VehicleProfile, error) {
	query := `
		SELECT id, vin, make, model, year, current_mileage, mileage_unit,
			risk_score, risk_level, status
		FROM cars WHERE vin = $1`

	var id uuid.UUID
	var p VehicleProfile
	err := r.db.QueryRow(ctx, query, vin).Scan(
		&id, &p.VIN, &p.Make, &p.Model, &p.Year, &p.CurrentMileage, &p.MileageUnit,
		&p.RiskScore, &p.RiskLevel, &p.Status,
	)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to get vehicle profile: %w", err)
	}
	return id, &p, nil
}

const reportEventColumns = `event_type, severity, COALESCE(description, ''), mileage, verified_by_iot, event_date`

func collectReportEvents(rows pgx.Rows) ([]*ReportEvent, error) {
	var events []*ReportEvent
	for rows.Next() {
		var e ReportEvent
		if err := rows.Scan(&e.EventType, &e.Severity, &e.Description, &e.Mileage, &e.VerifiedByIoT, &e.EventDate); err != nil {
			return nil, fmt.Errorf("failed to scan report event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// ListKeyEvents lists the most recent accident and tampering entries
func (r *Repository) ListKeyEvents(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*ReportEvent, error) {
	query := `
		SELECT ` + reportEventColumns + ` FROM car_events
		WHERE car_id = $1 AND event_type IN ('accident', 'mileage_tampering')
		ORDER BY event_date DESC, created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list key events: %w", err)
	}
	defer rows.Close()
	return collectReportEvents(rows)
}

// ListAllEvents lists the vehicle's recent history across all event types
func (r *Repository) ListAllEvents(ctx context.Context, vehicleID uuid.UUID, limit int) ([]*ReportEvent, error) {
	query := `
		SELECT ` + reportEventColumns + ` FROM car_events
		WHERE car_id = $1
		ORDER BY event_date DESC, created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return collectReportEvents(rows)
}

// ListOwners lists the ownership timeline oldest first
func (r *Repository) ListOwners(ctx context.Context, vehicleID uuid.UUID) ([]*OwnershipPeriod, error) {
	query := `
		SELECT started_at, ended_at, started_mileage, is_current
		FROM car_owners
		WHERE car_id = $1
		ORDER BY started_at ASC`

	rows, err := r.db.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []*OwnershipPeriod
	for rows.Next() {
		var o OwnershipPeriod
		if err := rows.Scan(&o.StartedAt, &o.EndedAt, &o.StartedMileage, &o.IsCurrent); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, &o)
	}
	return owners, rows.Err()
}

// CountCriticalTampering counts confirmed tampering incidents
func (r *Repository) CountCriticalTampering(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM car_events
		WHERE car_id = $1 AND event_type = 'mileage_tampering' AND severity = 'critical'
	`, vehicleID).Scan(&count)
	return count, err
}

// CountHighAccidents counts accidents with severity high
func (r *Repository) CountHighAccidents(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM car_events
		WHERE car_id = $1 AND event_type = 'accident' AND severity = 'high'
	`, vehicleID).Scan(&count)
	return count, err
}

// InsertCheck records a generated report
func (r *Repository) InsertCheck(ctx context.Context, check *Check) error {
	query := `
		INSERT INTO vehicle_checks (id, car_id, user_id, check_type, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.Exec(ctx, query, check.ID, check.VehicleID, check.UserID, check.CheckType, check.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert vehicle check: %w", err)
	}
	return nil
}
