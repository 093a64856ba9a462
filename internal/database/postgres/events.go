package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/officeflow/attendance/internal/attendance"
)

// LogRepository provides PostgreSQL-backed attendance event storage.
// Events are append-only: the repository exposes no update or delete.
type LogRepository struct {
	pool *Pool
}

// NewLogRepository creates a new PostgreSQL attendance log repository.
func NewLogRepository(pool *Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

const eventColumns = `id, identity_id, email, full_name, ts, type, lat, long,
	wifi_ssid, wifi_bssid, wifi_strength, distance_meters, face_distance, address, duration_hours`

func scanEvent(row interface{ Scan(...any) error }) (*attendance.AttendanceEvent, error) {
	var e attendance.AttendanceEvent
	var duration sql.NullFloat64
	err := row.Scan(
		&e.ID,
		&e.IdentityID,
		&e.Email,
		&e.FullName,
		&e.Timestamp,
		&e.Type,
		&e.Geo.Lat,
		&e.Geo.Long,
		&e.Wifi.SSID,
		&e.Wifi.BSSID,
		&e.Wifi.Strength,
		&e.DistanceMeters,
		&e.FaceDistance,
		&e.Address,
		&duration,
	)
	if err != nil {
		return nil, err
	}
	if duration.Valid {
		d := duration.Float64
		e.DurationHours = &d
	}
	return &e, nil
}

// LastEvent returns the most recent event for an identity, nil if none.
func (r *LogRepository) LastEvent(ctx context.Context, identityID string) (*attendance.AttendanceEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM attendance_events WHERE identity_id = $1 ORDER BY ts DESC LIMIT 1`
	e, err := scanEvent(r.pool.QueryRow(ctx, query, identityID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last event: %w", err)
	}
	return e, nil
}

// LastCheckIn returns the nearest prior check-in for an identity, nil if none.
func (r *LogRepository) LastCheckIn(ctx context.Context, identityID string) (*attendance.AttendanceEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM attendance_events
		WHERE identity_id = $1 AND type = 'check-in'
		ORDER BY ts DESC
		LIMIT 1
	`
	e, err := scanEvent(r.pool.QueryRow(ctx, query, identityID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last check-in: %w", err)
	}
	return e, nil
}

// ListByIdentity returns up to limit events, most recent first.
func (r *LogRepository) ListByIdentity(ctx context.Context, identityID string, limit int) ([]attendance.AttendanceEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM attendance_events WHERE identity_id = $1 ORDER BY ts DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// CheckOutsSince returns the check-out events at or after since, oldest first.
func (r *LogRepository) CheckOutsSince(ctx context.Context, identityID string, since time.Time) ([]attendance.AttendanceEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM attendance_events
		WHERE identity_id = $1 AND type = 'check-out' AND ts >= $2
		ORDER BY ts
	`
	rows, err := r.pool.Query(ctx, query, identityID, since)
	if err != nil {
		return nil, fmt.Errorf("query check-outs: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]attendance.AttendanceEvent, error) {
	var out []attendance.AttendanceEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Append writes one accepted event. The write is a single INSERT, so it is
// atomic: readers never observe a partial event.
func (r *LogRepository) Append(ctx context.Context, event *attendance.AttendanceEvent) error {
	query := `
		INSERT INTO attendance_events (id, identity_id, email, full_name, ts, type, lat, long,
			wifi_ssid, wifi_bssid, wifi_strength, distance_meters, face_distance, address, duration_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	var duration sql.NullFloat64
	if event.DurationHours != nil {
		duration = sql.NullFloat64{Float64: *event.DurationHours, Valid: true}
	}
	_, err := r.pool.Exec(ctx, query,
		event.ID, event.IdentityID, event.Email, event.FullName, event.Timestamp, event.Type,
		event.Geo.Lat, event.Geo.Long,
		event.Wifi.SSID, event.Wifi.BSSID, event.Wifi.Strength,
		event.DistanceMeters, event.FaceDistance, event.Address, duration,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
