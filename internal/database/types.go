package database

import (
	"time"

	"github.com/officeflow/attendance/internal/attendance"
)

// StoredEmployee is an enrolled employee as persisted in the directory.
type StoredEmployee struct {
	ID             string
	Email          string
	FullName       string
	EmployeeID     string // corporate badge number, distinct from ID
	Designation    string
	Department     string
	HashedPassword string
	Embedding      []float32
	Dim            int
	DeviceID       string
	CreatedAt      time.Time
}

// Identity converts the stored record into the verification core's view.
func (e *StoredEmployee) Identity() attendance.Identity {
	return attendance.Identity{
		ID:        e.ID,
		Email:     e.Email,
		FullName:  e.FullName,
		Embedding: e.Embedding,
		DeviceID:  e.DeviceID,
	}
}
