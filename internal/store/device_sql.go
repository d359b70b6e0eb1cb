package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vitalstream/internal/database"
	"vitalstream/internal/models"
)

// SQLDeviceStore reads devices from the registry database.
type SQLDeviceStore struct {
	db *database.DB
}

// NewSQLDeviceStore creates a new SQL-backed device store
func NewSQLDeviceStore(db *database.DB) *SQLDeviceStore {
	return &SQLDeviceStore{db: db}
}

// GetDevice retrieves a device by its hardware ID
func (s *SQLDeviceStore) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT device_id, assigned_to, active, last_seen, created_at FROM devices WHERE device_id = ?`

	var d models.Device
	var assignedTo sql.NullString
	var lastSeen sql.NullTime
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&d.DeviceID, &assignedTo, &d.Active, &lastSeen, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", deviceID, err)
	}
	if assignedTo.Valid {
		d.AssignedTo = &assignedTo.String
	}
	if lastSeen.Valid {
		d.LastSeen = &lastSeen.Time
	}
	return &d, nil
}

// TouchDevice records the time a device was last heard from
func (s *SQLDeviceStore) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE devices SET last_seen = ? WHERE device_id = ?`, seenAt, deviceID)
	if err != nil {
		return fmt.Errorf("failed to touch device %s: %w", deviceID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
