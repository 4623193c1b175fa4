package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalyticsRepository reads mileage observations for statistical analysis
type AnalyticsRepository interface {
	ListMileagePoints(ctx context.Context, vehicleID uuid.UUID) ([]*MileagePoint, error)
}

// Repository reads from the history ledger
type Repository struct {
	db *pgxpool.Pool
}

var _ AnalyticsRepository = (*Repository)(nil)

// NewRepository creates a new analytics repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListMileagePoints lists a vehicle's mileage-bearing events oldest first.
// Tampering incidents are excluded: they echo the rejected reading, not an
// accepted observation.
func (r *Repository) ListMileagePoints(ctx context.Context, vehicleID uuid.UUID) ([]*MileagePoint, error) {
	query := `
		SELECT mileage, event_date
		FROM car_events
		WHERE car_id = $1 AND mileage IS NOT NULL AND event_type != 'mileage_tampering'
		ORDER BY event_date ASC, created_at ASC`

	rows, err := r.db.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mileage points: %w", err)
	}
	defer rows.Close()

	var points []*MileagePoint
	for rows.Next() {
		var p MileagePoint
		if err := rows.Scan(&p.Mileage, &p.EventDate); err != nil {
			return nil, fmt.Errorf("failed to scan mileage point: %w", err)
		}
		points = append(points, &p)
	}
	return points, rows.Err()
}
