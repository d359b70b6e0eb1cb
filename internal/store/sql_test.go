package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vitalstream/internal/database"
)

func setupRegistry(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	db, err := database.New("sqlite://" + path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
	})
	return db
}

func insertTestPatient(t *testing.T, db *database.DB, id, code string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO patients
		(id, patient_code, name, age, room, weight, height, gender, patient_condition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, code, "Test Patient", 64, "ICU-2", 70.5, 1.72, "female", "post-op observation", now, now)
	if err != nil {
		t.Fatalf("Failed to insert patient: %v", err)
	}
}

func insertTestDevice(t *testing.T, db *database.DB, deviceID string, assignedTo *string, active bool) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO devices (device_id, assigned_to, active, created_at)
		VALUES (?, ?, ?, ?)
	`, deviceID, assignedTo, active, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to insert device: %v", err)
	}
}

func TestSQLPatientStore(t *testing.T) {
	db := setupRegistry(t)
	patients := NewSQLPatientStore(db)
	ctx := context.Background()

	insertTestPatient(t, db, "p1", "P-001")
	insertTestPatient(t, db, "p2", "P-002")

	p, err := patients.GetPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPatient failed: %v", err)
	}
	if p.PatientID != "P-001" || p.Name != "Test Patient" || p.Age != 64 {
		t.Errorf("Unexpected patient: %+v", p)
	}
	if p.Condition != "post-op observation" {
		t.Errorf("Expected condition, got %q", p.Condition)
	}

	if _, err := patients.GetPatient(ctx, "ghost"); err != ErrPatientNotFound {
		t.Errorf("Expected ErrPatientNotFound, got %v", err)
	}

	roster, err := patients.ListPatients(ctx)
	if err != nil {
		t.Fatalf("ListPatients failed: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("Expected 2 patients, got %d", len(roster))
	}
	if roster[0].PatientID != "P-001" || roster[1].PatientID != "P-002" {
		t.Errorf("Expected roster ordered by patient code, got %+v", roster)
	}
}

func TestSQLDeviceStore(t *testing.T) {
	db := setupRegistry(t)
	devices := NewSQLDeviceStore(db)
	ctx := context.Background()

	patientID := "p1"
	insertTestDevice(t, db, "dev-1", &patientID, true)
	insertTestDevice(t, db, "dev-free", nil, true)

	d, err := devices.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if d.AssignedTo == nil || *d.AssignedTo != "p1" {
		t.Errorf("Expected assignment to p1, got %v", d.AssignedTo)
	}
	if !d.Active {
		t.Error("Expected device active")
	}
	if d.LastSeen != nil {
		t.Error("Expected no last_seen before first contact")
	}

	free, err := devices.GetDevice(ctx, "dev-free")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if free.AssignedTo != nil {
		t.Errorf("Expected unassigned device, got %v", *free.AssignedTo)
	}

	if _, err := devices.GetDevice(ctx, "ghost"); err != ErrDeviceNotFound {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSQLDeviceStoreTouch(t *testing.T) {
	db := setupRegistry(t)
	devices := NewSQLDeviceStore(db)
	ctx := context.Background()

	insertTestDevice(t, db, "dev-1", nil, true)

	seenAt := time.Now().UTC().Truncate(time.Second)
	if err := devices.TouchDevice(ctx, "dev-1", seenAt); err != nil {
		t.Fatalf("TouchDevice failed: %v", err)
	}

	d, err := devices.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if d.LastSeen == nil {
		t.Fatal("Expected last_seen to be set")
	}

	if err := devices.TouchDevice(ctx, "ghost", seenAt); err != ErrDeviceNotFound {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}
