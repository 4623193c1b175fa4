package vehicles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles vehicle database operations
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies the service's requirements.
var _ VehicleRepository = (*Repository)(nil)

// NewRepository creates a new vehicle repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new vehicle
func (r *Repository) Create(ctx context.Context, vehicle *Vehicle) error {
	query := `
		INSERT INTO cars (
			id, vin, make, model, year, color, engine_type, transmission, fuel_type,
			current_mileage, mileage_unit, description, ownership_document_url,
			status, risk_score, risk_level, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.Exec(ctx, query,
		vehicle.ID, vehicle.VIN, vehicle.Make, vehicle.Model, vehicle.Year,
		vehicle.Color, vehicle.EngineType, vehicle.Transmission, vehicle.FuelType,
		vehicle.CurrentMileage, vehicle.MileageUnit, vehicle.Description, vehicle.OwnershipDocumentURL,
		vehicle.Status, vehicle.RiskScore, vehicle.RiskLevel, vehicle.CreatedAt, vehicle.UpdatedAt,
	)
	return err
}

const vehicleColumns = `
	id, vin, make, model, year, color, engine_type, transmission, fuel_type,
	current_mileage, mileage_unit, description, ownership_document_url,
	status, risk_score, risk_level, created_at, updated_at
`

func scanVehicle(row interface {
	Scan(dest ...any) error
}) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(
		&v.ID, &v.VIN, &v.Make, &v.Model, &v.Year, &v.Color, &v.EngineType,
		&v.Transmission, &v.FuelType, &v.CurrentMileage, &v.MileageUnit,
		&v.Description, &v.OwnershipDocumentURL, &v.Status, &v.RiskScore,
		&v.RiskLevel, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByID gets a vehicle by ID
func (r *Repository) GetByID(ctx context.Context, vehicleID uuid.UUID) (*Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM cars WHERE id = $1`
	return scanVehicle(r.db.QueryRow(ctx, query, vehicleID))
}

// GetByVIN gets a vehicle by VIN
func (r *Repository) GetByVIN(ctx context.Context, vin string) (*Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM cars WHERE vin = $1`
	return scanVehicle(r.db.QueryRow(ctx, query, vin))
}

// UpdateProfile updates the mutable profile fields of a vehicle
func (r *Repository) UpdateProfile(ctx context.Context, vehicle *Vehicle) error {
	query := `
		UPDATE cars SET
			color = $1, description = $2, ownership_document_url = $3,
			current_mileage = $4, updated_at = NOW()
		WHERE id = $5
	`

	_, err := r.db.Exec(ctx, query,
		vehicle.Color, vehicle.Description, vehicle.OwnershipDocumentURL,
		vehicle.CurrentMileage, vehicle.ID,
	)
	return err
}

// UpdateRisk stores the recomputed risk score with its derived level and status
func (r *Repository) UpdateRisk(ctx context.Context, vehicleID uuid.UUID, score int, level RiskLevel, status Status) error {
	query := `UPDATE cars SET risk_score = $1, risk_level = $2, status = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.db.Exec(ctx, query, score, level, status, vehicleID)
	return err
}

// AdvanceMileage moves the mileage watermark forward, never backward.
// Returns true when the stored value changed.
func (r *Repository) AdvanceMileage(ctx context.Context, vehicleID uuid.UUID, mileage int) (bool, error) {
	query := `UPDATE cars SET current_mileage = $1, updated_at = NOW() WHERE id = $2 AND current_mileage < $1`
	tag, err := r.db.Exec(ctx, query, mileage, vehicleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountTamperingIncidents counts confirmed mileage_tampering events. Only
// critical entries count: high-severity rate anomalies are informational and
// must not move the score.
func (r *Repository) CountTamperingIncidents(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM car_events
		WHERE car_id = $1 AND event_type = 'mileage_tampering' AND severity = 'critical'
	`, vehicleID).Scan(&count)
	return count, err
}

// CountHighSeverityAccidents counts accident events with severity high
func (r *Repository) CountHighSeverityAccidents(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM car_events WHERE car_id = $1 AND event_type = 'accident' AND severity = 'high'
	`, vehicleID).Scan(&count)
	return count, err
}

// CountOwnersStartedSince counts ownership records started after the cutoff
func (r *Repository) CountOwnersStartedSince(ctx context.Context, vehicleID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM car_owners WHERE car_id = $1 AND started_at >= $2
	`, vehicleID, since).Scan(&count)
	return count, err
}

// ListIncidents lists tampering incidents for a vehicle, newest first
func (r *Repository) ListIncidents(ctx context.Context, vehicleID uuid.UUID) ([]*Incident, error) {
	query := `
		SELECT id, car_id, event_type, severity, COALESCE(description, ''), mileage, verified_by_iot, event_date
		FROM car_events
		WHERE car_id = $1 AND event_type = 'mileage_tampering'
		ORDER BY event_date DESC, created_at DESC
	`

	rows, err := r.db.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := make([]*Incident, 0)
	for rows.Next() {
		var inc Incident
		if err := rows.Scan(
			&inc.ID, &inc.VehicleID, &inc.Kind, &inc.Severity, &inc.Description,
			&inc.Mileage, &inc.VerifiedByIoT, &inc.OccurredAt,
		); err != nil {
			return nil, err
		}
		incidents = append(incidents, &inc)
	}

	return incidents, rows.Err()
}

// CreateOwner inserts an ownership record
func (r *Repository) CreateOwner(ctx context.Context, owner *Owner) error {
	query := `
		INSERT INTO car_owners (id, car_id, user_id, started_mileage, started_at, ended_at, is_current, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		owner.ID, owner.VehicleID, owner.UserID, owner.StartedMileage,
		owner.StartedAt, owner.EndedAt, owner.IsCurrent, owner.CreatedAt,
	)
	return err
}

// GetCurrentOwner gets the current ownership record for a vehicle
func (r *Repository) GetCurrentOwner(ctx context.Context, vehicleID uuid.UUID) (*Owner, error) {
	query := `
		SELECT id, car_id, user_id, started_mileage, started_at, ended_at, is_current, created_at
		FROM car_owners
		WHERE car_id = $1 AND is_current = true
		ORDER BY started_at DESC
		LIMIT 1
	`

	var o Owner
	err := r.db.QueryRow(ctx, query, vehicleID).Scan(
		&o.ID, &o.VehicleID, &o.UserID, &o.StartedMileage,
		&o.StartedAt, &o.EndedAt, &o.IsCurrent, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListHighRisk lists vehicles at or above the given risk score, highest first
func (r *Repository) ListHighRisk(ctx context.Context, minScore, limit int) ([]*HighRiskVehicle, error) {
	query := `
		SELECT c.vin, c.make, c.model, c.year, c.risk_score, c.risk_level, c.status, c.current_mileage,
			(SELECT COUNT(*) FROM car_events e WHERE e.car_id = c.id AND e.event_type = 'mileage_tampering' AND e.severity = 'critical')
		FROM cars c
		WHERE c.risk_score >= $1
		ORDER BY c.risk_score DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, minScore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vehicles := make([]*HighRiskVehicle, 0)
	for rows.Next() {
		var v HighRiskVehicle
		if err := rows.Scan(
			&v.VIN, &v.Make, &v.Model, &v.Year, &v.RiskScore, &v.RiskLevel,
			&v.Status, &v.CurrentMileage, &v.TamperingIncidents,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, &v)
	}

	return vehicles, rows.Err()
}
