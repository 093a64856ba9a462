// Package mock provides in-memory implementations of the repository
// interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/database"
)

// MockDirectory is an in-memory implementation of database.DirectoryWriter.
type MockDirectory struct {
	mu        sync.RWMutex
	byEmail   map[string]*database.StoredEmployee
	order     []string // emails in insertion order for a stable population

	// Error injection
	GetError        error
	CreateError     error
	UpdateError     error
	PopulationError error

	// PopulationCalls counts how many identities were pulled from
	// population streams, for fast-path assertions.
	PopulationCalls int
}

// NewMockDirectory creates an empty mock directory.
func NewMockDirectory() *MockDirectory {
	return &MockDirectory{byEmail: make(map[string]*database.StoredEmployee)}
}

// AddEmployee seeds an employee, assigning an ID when missing.
func (m *MockDirectory) AddEmployee(emp database.StoredEmployee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if emp.ID == "" {
		emp.ID = fmt.Sprintf("emp-%d", len(m.order)+1)
	}
	if _, exists := m.byEmail[emp.Email]; !exists {
		m.order = append(m.order, emp.Email)
	}
	m.byEmail[emp.Email] = &emp
}

func (m *MockDirectory) GetByEmail(ctx context.Context, email string) (*database.StoredEmployee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *emp
	return &cp, nil
}

func (m *MockDirectory) GetByID(ctx context.Context, id string) (*database.StoredEmployee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, emp := range m.byEmail {
		if emp.ID == id {
			cp := *emp
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockDirectory) FindByName(ctx context.Context, name string) ([]database.StoredEmployee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := database.NormalizeName(name)
	var out []database.StoredEmployee
	for _, email := range m.order {
		emp := m.byEmail[email]
		if database.NormalizeName(emp.FullName) == want {
			out = append(out, *emp)
		}
	}
	return out, nil
}

func (m *MockDirectory) Count(ctx context.Context) (int, error) {
	if m.GetError != nil {
		return 0, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byEmail), nil
}

func (m *MockDirectory) List(ctx context.Context, limit int) ([]database.StoredEmployee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredEmployee
	for _, email := range m.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *m.byEmail[email])
	}
	return out, nil
}

func (m *MockDirectory) Population(ctx context.Context) (attendance.Population, error) {
	if m.PopulationError != nil {
		return nil, m.PopulationError
	}
	m.mu.RLock()
	ids := make([]attendance.Identity, 0, len(m.order))
	for _, email := range m.order {
		ids = append(ids, m.byEmail[email].Identity())
	}
	m.mu.RUnlock()

	inner := attendance.SlicePopulation(ids)
	return attendance.PopulationFunc(func(ctx context.Context) (*attendance.Identity, error) {
		id, err := inner.Next(ctx)
		if id != nil {
			m.mu.Lock()
			m.PopulationCalls++
			m.mu.Unlock()
		}
		return id, err
	}), nil
}

func (m *MockDirectory) Create(ctx context.Context, emp *database.StoredEmployee) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[emp.Email]; exists {
		return fmt.Errorf("employee %s already exists", emp.Email)
	}
	cp := *emp
	if cp.ID == "" {
		cp.ID = fmt.Sprintf("emp-%d", len(m.order)+1)
		emp.ID = cp.ID
	}
	m.order = append(m.order, cp.Email)
	m.byEmail[cp.Email] = &cp
	return nil
}

func (m *MockDirectory) ReplaceEmbedding(ctx context.Context, email string, embedding []float32) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	emp, ok := m.byEmail[email]
	if !ok {
		return fmt.Errorf("employee %s not found", email)
	}
	emp.Embedding = append([]float32(nil), embedding...)
	emp.Dim = len(embedding)
	return nil
}

func (m *MockDirectory) BindDevice(ctx context.Context, email, deviceID string) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	emp, ok := m.byEmail[email]
	if !ok {
		return fmt.Errorf("employee %s not found", email)
	}
	emp.DeviceID = deviceID
	return nil
}

// MockLog is an in-memory implementation of database.LogWriter.
type MockLog struct {
	mu     sync.RWMutex
	events []attendance.AttendanceEvent

	// Error injection
	ReadError   error
	AppendError error
}

// NewMockLog creates an empty mock attendance log.
func NewMockLog() *MockLog {
	return &MockLog{}
}

// AddEvent seeds an event without going through Append validation.
func (m *MockLog) AddEvent(event attendance.AttendanceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a copy of all stored events in append order.
func (m *MockLog) Events() []attendance.AttendanceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]attendance.AttendanceEvent(nil), m.events...)
}

func (m *MockLog) byIdentityDesc(identityID string) []attendance.AttendanceEvent {
	var out []attendance.AttendanceEvent
	for _, e := range m.events {
		if e.IdentityID == identityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (m *MockLog) LastEvent(ctx context.Context, identityID string) (*attendance.AttendanceEvent, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.byIdentityDesc(identityID)
	if len(events) == 0 {
		return nil, nil
	}
	cp := events[0]
	return &cp, nil
}

func (m *MockLog) LastCheckIn(ctx context.Context, identityID string) (*attendance.AttendanceEvent, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.byIdentityDesc(identityID) {
		if e.Type == attendance.CheckIn {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockLog) ListByIdentity(ctx context.Context, identityID string, limit int) ([]attendance.AttendanceEvent, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.byIdentityDesc(identityID)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *MockLog) CheckOutsSince(ctx context.Context, identityID string, since time.Time) ([]attendance.AttendanceEvent, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []attendance.AttendanceEvent
	for _, e := range m.events {
		if e.IdentityID == identityID && e.Type == attendance.CheckOut && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *MockLog) Append(ctx context.Context, event *attendance.AttendanceEvent) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}
