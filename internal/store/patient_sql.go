package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vitalstream/internal/database"
	"vitalstream/internal/models"
)

// SQLPatientStore reads patients from the registry database.
type SQLPatientStore struct {
	db *database.DB
}

// NewSQLPatientStore creates a new SQL-backed patient store
func NewSQLPatientStore(db *database.DB) *SQLPatientStore {
	return &SQLPatientStore{db: db}
}

const patientColumns = `id, patient_code, name, age, room, weight, height, gender, patient_condition, created_at, updated_at`

// GetPatient retrieves a patient by ID
func (s *SQLPatientStore) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = ?`

	var p models.Patient
	var condition sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.PatientID, &p.Name, &p.Age, &p.Room,
		&p.Weight, &p.Height, &p.Gender, &condition,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %s: %w", id, err)
	}
	p.Condition = condition.String
	return &p, nil
}

// ListPatients returns the full patient roster
func (s *SQLPatientStore) ListPatients(ctx context.Context) ([]models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY patient_code`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		var p models.Patient
		var condition sql.NullString
		if err := rows.Scan(
			&p.ID, &p.PatientID, &p.Name, &p.Age, &p.Room,
			&p.Weight, &p.Height, &p.Gender, &condition,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		p.Condition = condition.String
		patients = append(patients, p)
	}

	return patients, rows.Err()
}
