// Package database defines the repository interfaces for the employee
// directory and the attendance log, plus the in-memory candidate index
// used to bound 1:N identification scans.
package database

import (
	"context"
	"time"

	"github.com/officeflow/attendance/internal/attendance"
)

// DirectoryReader provides read-only access to enrolled employees.
type DirectoryReader interface {
	// GetByEmail retrieves an employee by email, returns nil if not found.
	GetByEmail(ctx context.Context, email string) (*StoredEmployee, error)
	// GetByID retrieves an employee by directory ID, returns nil if not found.
	GetByID(ctx context.Context, id string) (*StoredEmployee, error)
	// FindByName retrieves employees whose full name matches after
	// normalization (lowercase, no diacritics, dashes to spaces).
	FindByName(ctx context.Context, name string) ([]StoredEmployee, error)
	// Count returns the number of enrolled employees.
	Count(ctx context.Context) (int, error)
	// List returns up to limit employees ordered by enrollment time.
	List(ctx context.Context, limit int) ([]StoredEmployee, error)
	// Population streams all identities with embeddings for 1:N resolution.
	// The stream must be stable-ordered so resolution is deterministic.
	Population(ctx context.Context) (attendance.Population, error)
}

// DirectoryWriter provides write access to the employee directory.
type DirectoryWriter interface {
	DirectoryReader

	// Create enrolls a new employee. Fails if the email is taken.
	Create(ctx context.Context, emp *StoredEmployee) error
	// ReplaceEmbedding replaces the enrolled embedding wholesale. No
	// history is kept.
	ReplaceEmbedding(ctx context.Context, email string, embedding []float32) error
	// BindDevice sets the device binding for an employee.
	BindDevice(ctx context.Context, email, deviceID string) error
}

// LogReader provides read-only access to the attendance log.
type LogReader interface {
	// LastEvent returns the most recent event for an identity, nil if none.
	LastEvent(ctx context.Context, identityID string) (*attendance.AttendanceEvent, error)
	// LastCheckIn returns the nearest prior check-in for an identity, nil
	// if none. Used for duration pairing when the log has anomalies.
	LastCheckIn(ctx context.Context, identityID string) (*attendance.AttendanceEvent, error)
	// ListByIdentity returns up to limit events, most recent first.
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]attendance.AttendanceEvent, error)
	// CheckOutsSince returns the check-out events at or after since,
	// oldest first. Used by analytics for the 7-day window.
	CheckOutsSince(ctx context.Context, identityID string, since time.Time) ([]attendance.AttendanceEvent, error)
}

// LogWriter provides append access to the attendance log. Events are
// append-only: there is no update or delete.
type LogWriter interface {
	LogReader

	// Append writes one accepted event atomically.
	Append(ctx context.Context, event *attendance.AttendanceEvent) error
}
