package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/database"
)

// DirectoryRepository provides PostgreSQL-backed employee storage.
type DirectoryRepository struct {
	pool *Pool
}

// NewDirectoryRepository creates a new PostgreSQL directory repository.
func NewDirectoryRepository(pool *Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

const employeeColumns = `id, email, full_name, employee_id, designation, department,
	hashed_password, embedding, dim, device_id, created_at`

func scanEmployee(row interface{ Scan(...any) error }) (*database.StoredEmployee, error) {
	var emp database.StoredEmployee
	var vec pgvector.Vector
	err := row.Scan(
		&emp.ID,
		&emp.Email,
		&emp.FullName,
		&emp.EmployeeID,
		&emp.Designation,
		&emp.Department,
		&emp.HashedPassword,
		&vec,
		&emp.Dim,
		&emp.DeviceID,
		&emp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	emp.Embedding = vec.Slice()
	return &emp, nil
}

// GetByEmail retrieves an employee by email, returns nil if not found.
func (r *DirectoryRepository) GetByEmail(ctx context.Context, email string) (*database.StoredEmployee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE email = $1`
	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee by email: %w", err)
	}
	return emp, nil
}

// GetByID retrieves an employee by directory ID, returns nil if not found.
func (r *DirectoryRepository) GetByID(ctx context.Context, id string) (*database.StoredEmployee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee by id: %w", err)
	}
	return emp, nil
}

// FindByName retrieves employees by normalized full name. The SQL mirrors
// database.NormalizeName: lowercase, unaccent, dashes to spaces.
func (r *DirectoryRepository) FindByName(ctx context.Context, name string) ([]database.StoredEmployee, error) {
	normalized := database.NormalizeName(name)
	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE LOWER(REPLACE(unaccent(full_name), '-', ' ')) = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("find employees by name: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEmployee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, *emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return out, nil
}

// Count returns the number of enrolled employees.
func (r *DirectoryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&n); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return n, nil
}

// List returns up to limit employees ordered by enrollment time.
func (r *DirectoryRepository) List(ctx context.Context, limit int) ([]database.StoredEmployee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY created_at LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEmployee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, *emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return out, nil
}

// populationStream pulls identities row by row so the resolver never
// materializes the whole directory. The rows cursor is closed on
// exhaustion or on the first error.
type populationStream struct {
	rows *sql.Rows
	done bool
}

func (s *populationStream) Next(ctx context.Context) (*attendance.Identity, error) {
	if s.done {
		return nil, nil
	}
	if !s.rows.Next() {
		s.done = true
		err := s.rows.Err()
		s.rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate population: %w", err)
		}
		return nil, nil
	}

	var id attendance.Identity
	var vec pgvector.Vector
	if err := s.rows.Scan(&id.ID, &id.Email, &id.FullName, &vec, &id.DeviceID); err != nil {
		s.done = true
		s.rows.Close()
		return nil, fmt.Errorf("scan population row: %w", err)
	}
	id.Embedding = vec.Slice()
	return &id, nil
}

// Population streams all identities with embeddings, ordered by enrollment
// time for a stable scan order.
func (r *DirectoryRepository) Population(ctx context.Context) (attendance.Population, error) {
	query := `
		SELECT id, email, full_name, embedding, device_id
		FROM employees
		WHERE embedding IS NOT NULL
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query population: %w", err)
	}
	return &populationStream{rows: rows}, nil
}

// Create enrolls a new employee.
func (r *DirectoryRepository) Create(ctx context.Context, emp *database.StoredEmployee) error {
	query := `
		INSERT INTO employees (id, email, full_name, employee_id, designation, department,
			hashed_password, embedding, dim, device_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	vec := pgvector.NewVector(emp.Embedding)
	_, err := r.pool.Exec(ctx, query,
		emp.ID, emp.Email, emp.FullName, emp.EmployeeID, emp.Designation, emp.Department,
		emp.HashedPassword, vec, emp.Dim, emp.DeviceID, emp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// ReplaceEmbedding replaces the enrolled embedding wholesale.
func (r *DirectoryRepository) ReplaceEmbedding(ctx context.Context, email string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	result, err := r.pool.Exec(ctx,
		"UPDATE employees SET embedding = $1, dim = $2 WHERE email = $3",
		vec, len(embedding), email,
	)
	if err != nil {
		return fmt.Errorf("replace embedding: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("replace embedding: employee %s not found", email)
	}
	return nil
}

// BindDevice sets the device binding for an employee.
func (r *DirectoryRepository) BindDevice(ctx context.Context, email, deviceID string) error {
	result, err := r.pool.Exec(ctx,
		"UPDATE employees SET device_id = $1 WHERE email = $2",
		deviceID, email,
	)
	if err != nil {
		return fmt.Errorf("bind device: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("bind device: employee %s not found", email)
	}
	return nil
}
