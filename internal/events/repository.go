package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles event persistence
type Repository struct {
	db *pgxpool.Pool
}

var _ EventRepository = (*Repository)(nil)

// NewRepository creates a new event repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, car_id, event_type, severity, description, mileage, cost,
	document_url, verified_by_iot, event_date, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.VehicleID, &e.EventType, &e.Severity, &e.Description, &e.Mileage,
		&e.Cost, &e.DocumentURL, &e.VerifiedByIoT, &e.EventDate, &e.CreatedBy,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event
func (r *Repository) Create(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO car_events (id, car_id, event_type, severity, description, mileage,
			cost, document_url, verified_by_iot, event_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		event.ID, event.VehicleID, event.EventType, event.Severity, event.Description,
		event.Mileage, event.Cost, event.DocumentURL, event.VerifiedByIoT,
		event.EventDate, event.CreatedBy, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetByID gets an event by ID
func (r *Repository) GetByID(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM car_events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRow(ctx, query, eventID))
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListByVehicle lists events for a vehicle, newest first, with optional
// filters. Ties on event_date are broken by insertion order.
func (r *Repository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID, filter *ListFilter) ([]*Event, int64, error) {
	conditions := []string{"car_id = $1"}
	args := []interface{}{vehicleID}
	argPos := 2

	if filter.EventType != nil {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argPos))
		args = append(args, *filter.EventType)
		argPos++
	}
	if filter.Severity != nil {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argPos))
		args = append(args, *filter.Severity)
		argPos++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("event_date >= $%d", argPos))
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("event_date <= $%d", argPos))
		args = append(args, *filter.To)
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM car_events WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM car_events
		WHERE %s
		ORDER BY event_date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, eventColumns, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, total, rows.Err()
}

// MaxRecordedMileage returns the highest mileage value across all of the
// vehicle's mileage-bearing events. The second return is false when the
// vehicle has no such events yet.
func (r *Repository) MaxRecordedMileage(ctx context.Context, vehicleID uuid.UUID) (int, bool, error) {
	// tampering incidents carry the rejected reading, which is not an observation
	query := `SELECT MAX(mileage) FROM car_events WHERE car_id = $1 AND mileage IS NOT NULL AND event_type != 'mileage_tampering'`

	var max *int
	if err := r.db.QueryRow(ctx, query, vehicleID).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("failed to get max mileage: %w", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

// CountRecentByType counts events of a type and severity recorded since the
// given time. Used for incident deduplication windows; the severity filter
// keeps incidents of different weight from suppressing one another.
func (r *Repository) CountRecentByType(ctx context.Context, vehicleID uuid.UUID, eventType EventType, severity Severity, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM car_events
		WHERE car_id = $1 AND event_type = $2 AND severity = $3 AND created_at >= $4`

	var count int
	if err := r.db.QueryRow(ctx, query, vehicleID, eventType, severity, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent events: %w", err)
	}
	return count, nil
}

// Update amends an event's descriptive fields
func (r *Repository) Update(ctx context.Context, event *Event) error {
	query := `
		UPDATE car_events
		SET severity = $1, description = $2, cost = $3, document_url = $4, updated_at = $5
		WHERE id = $6`

	_, err := r.db.Exec(ctx, query,
		event.Severity, event.Description, event.Cost, event.DocumentURL,
		time.Now(), event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// Delete removes an event
func (r *Repository) Delete(ctx context.Context, eventID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM car_events WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// RecordOperationalEvent inserts a system-generated ledger entry such as a
// tampering incident, a maintenance alert or a trip marker
func (r *Repository) RecordOperationalEvent(ctx context.Context, vehicleID uuid.UUID, eventType EventType, severity Severity, description string, mileage *int, verifiedByIoT bool) error {
	now := time.Now()
	return r.Create(ctx, &Event{
		ID:            uuid.New(),
		VehicleID:     vehicleID,
		EventType:     eventType,
		Severity:      severity,
		Description:   description,
		Mileage:       mileage,
		VerifiedByIoT: verifiedByIoT,
		EventDate:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// RecordIncident satisfies the vehicles package's incident recorder with a
// tampering ledger entry
func (r *Repository) RecordIncident(ctx context.Context, vehicleID uuid.UUID, severity, description string, mileage int, verifiedByIoT bool) error {
	return r.RecordOperationalEvent(ctx, vehicleID, EventTypeMileageTampering, Severity(severity), description, &mileage, verifiedByIoT)
}
