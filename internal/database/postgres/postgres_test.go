//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/config"
	"github.com/officeflow/attendance/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(seed float32) []float32 {
	embedding := make([]float32, 512)
	for i := range embedding {
		embedding[i] = seed + float32(i)/512.0
	}
	return embedding
}

func TestDirectoryRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewDirectoryRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		emp := &database.StoredEmployee{
			ID:             "11111111-1111-1111-1111-111111111111",
			Email:          "alice@example.com",
			FullName:       "Alice Smith",
			EmployeeID:     "E-100",
			Designation:    "Engineer",
			Department:     "Platform",
			HashedPassword: "$2a$10$fakehash",
			Embedding:      testEmbedding(0.1),
			Dim:            512,
			CreatedAt:      time.Now(),
		}
		if err := repo.Create(ctx, emp); err != nil {
			t.Fatalf("Failed to create employee: %v", err)
		}

		got, err := repo.GetByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("Failed to get employee: %v", err)
		}
		if got == nil {
			t.Fatal("Expected employee, got nil")
		}
		if got.FullName != "Alice Smith" {
			t.Errorf("Expected 'Alice Smith', got '%s'", got.FullName)
		}
		if len(got.Embedding) != 512 {
			t.Errorf("Expected 512 dimensions, got %d", len(got.Embedding))
		}
		if got.Embedding[0] != emp.Embedding[0] {
			t.Errorf("Embedding round-trip mismatch: %v vs %v", got.Embedding[0], emp.Embedding[0])
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "nobody@example.com")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Error("Expected nil for missing employee")
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		err := repo.Create(ctx, &database.StoredEmployee{
			ID:             "22222222-2222-2222-2222-222222222222",
			Email:          "alice@example.com",
			FullName:       "Alice Clone",
			HashedPassword: "x",
			Embedding:      testEmbedding(0.2),
			Dim:            512,
			CreatedAt:      time.Now(),
		})
		if err == nil {
			t.Error("Expected error for duplicate email")
		}
	})

	t.Run("FindByName", func(t *testing.T) {
		found, err := repo.FindByName(ctx, "alice smith")
		if err != nil {
			t.Fatalf("Failed to find by name: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("Expected 1 match, got %d", len(found))
		}
		if found[0].Email != "alice@example.com" {
			t.Errorf("Wrong employee found: %s", found[0].Email)
		}
	})

	t.Run("ReplaceEmbedding", func(t *testing.T) {
		replacement := testEmbedding(0.9)
		if err := repo.ReplaceEmbedding(ctx, "alice@example.com", replacement); err != nil {
			t.Fatalf("Failed to replace embedding: %v", err)
		}
		got, _ := repo.GetByEmail(ctx, "alice@example.com")
		if got.Embedding[0] != replacement[0] {
			t.Error("Embedding not replaced")
		}
	})

	t.Run("BindDevice", func(t *testing.T) {
		if err := repo.BindDevice(ctx, "alice@example.com", "device-1"); err != nil {
			t.Fatalf("Failed to bind device: %v", err)
		}
		got, _ := repo.GetByEmail(ctx, "alice@example.com")
		if got.DeviceID != "device-1" {
			t.Errorf("Expected device-1, got '%s'", got.DeviceID)
		}
	})

	t.Run("Population", func(t *testing.T) {
		population, err := repo.Population(ctx)
		if err != nil {
			t.Fatalf("Failed to stream population: %v", err)
		}
		count := 0
		for {
			id, err := population.Next(ctx)
			if err != nil {
				t.Fatalf("Stream error: %v", err)
			}
			if id == nil {
				break
			}
			if len(id.Embedding) == 0 {
				t.Error("Population must only yield identities with embeddings")
			}
			count++
		}
		if count != 1 {
			t.Errorf("Expected 1 identity, got %d", count)
		}
	})
}

func TestLogRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	directory := NewDirectoryRepository(pool)
	repo := NewLogRepository(pool)

	emp := &database.StoredEmployee{
		ID:             "33333333-3333-3333-3333-333333333333",
		Email:          "bob@example.com",
		FullName:       "Bob Jones",
		HashedPassword: "x",
		Embedding:      testEmbedding(0.3),
		Dim:            512,
		CreatedAt:      time.Now(),
	}
	if err := directory.Create(ctx, emp); err != nil {
		t.Fatalf("Failed to create employee: %v", err)
	}

	checkInAt := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	checkIn := &attendance.AttendanceEvent{
		ID:             "44444444-4444-4444-4444-444444444444",
		IdentityID:     emp.ID,
		Email:          emp.Email,
		FullName:       emp.FullName,
		Timestamp:      checkInAt,
		Type:           attendance.CheckIn,
		Geo:            attendance.GeoPoint{Lat: 28.41, Long: 77.35},
		Wifi:           attendance.WifiSnapshot{SSID: "office", Strength: -52},
		DistanceMeters: 2.5,
		FaceDistance:   0.12,
	}

	t.Run("AppendAndLastEvent", func(t *testing.T) {
		if err := repo.Append(ctx, checkIn); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}

		got, err := repo.LastEvent(ctx, emp.ID)
		if err != nil {
			t.Fatalf("Failed to read last event: %v", err)
		}
		if got == nil || got.ID != checkIn.ID {
			t.Fatalf("Unexpected last event: %+v", got)
		}
		if got.DurationHours != nil {
			t.Error("Check-in must not carry a duration")
		}
		if got.Wifi.Strength != -52 {
			t.Errorf("WiFi snapshot not round-tripped: %v", got.Wifi)
		}
	})

	t.Run("CheckOutWithDuration", func(t *testing.T) {
		hours := 8.5
		checkOut := &attendance.AttendanceEvent{
			ID:            "55555555-5555-5555-5555-555555555555",
			IdentityID:    emp.ID,
			Email:         emp.Email,
			Timestamp:     checkInAt.Add(8*time.Hour + 30*time.Minute),
			Type:          attendance.CheckOut,
			Geo:           attendance.GeoPoint{Lat: 28.41, Long: 77.35},
			Wifi:          attendance.WifiSnapshot{SSID: "office", Strength: -55},
			DurationHours: &hours,
		}
		if err := repo.Append(ctx, checkOut); err != nil {
			t.Fatalf("Failed to append check-out: %v", err)
		}

		got, err := repo.LastEvent(ctx, emp.ID)
		if err != nil {
			t.Fatalf("Failed to read last event: %v", err)
		}
		if got.Type != attendance.CheckOut {
			t.Errorf("Expected check-out, got %s", got.Type)
		}
		if got.DurationHours == nil || *got.DurationHours != 8.5 {
			t.Errorf("Duration not round-tripped: %v", got.DurationHours)
		}
	})

	t.Run("LastCheckIn", func(t *testing.T) {
		got, err := repo.LastCheckIn(ctx, emp.ID)
		if err != nil {
			t.Fatalf("Failed to read last check-in: %v", err)
		}
		if got == nil || got.Type != attendance.CheckIn {
			t.Fatalf("Expected the check-in, got %+v", got)
		}
	})

	t.Run("ListByIdentity", func(t *testing.T) {
		events, err := repo.ListByIdentity(ctx, emp.ID, 10)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(events))
		}
		if events[0].Type != attendance.CheckOut {
			t.Error("Expected most recent event first")
		}
	})

	t.Run("CheckOutsSince", func(t *testing.T) {
		events, err := repo.CheckOutsSince(ctx, emp.ID, checkInAt)
		if err != nil {
			t.Fatalf("Failed to query check-outs: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Expected 1 check-out, got %d", len(events))
		}

		events, err = repo.CheckOutsSince(ctx, emp.ID, checkInAt.Add(24*time.Hour))
		if err != nil {
			t.Fatalf("Failed to query check-outs: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected no check-outs after cutoff, got %d", len(events))
		}
	})

	t.Run("LastEventMissingIdentity", func(t *testing.T) {
		got, err := repo.LastEvent(ctx, "99999999-9999-9999-9999-999999999999")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Error("Expected nil for identity with no events")
		}
	})
}
