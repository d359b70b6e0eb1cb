// Package store provides narrow repository-style access to the patient and
// device registries and the append-only vital sample / aggregate time series.
// The pipeline depends only on these interfaces, never on a live object graph.
package store

import (
	"context"
	"errors"
	"time"

	"vitalstream/internal/models"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDeviceNotFound  = errors.New("device not found")
)

// PatientStore reads the patient registry owned by the external admin flow.
type PatientStore interface {
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	ListPatients(ctx context.Context) ([]models.Patient, error)
}

// DeviceStore reads the device registry and records liveness.
type DeviceStore interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error
}

// SampleStore is the append-only vital sample repository. Samples are never
// mutated after insertion.
type SampleStore interface {
	InsertSample(ctx context.Context, sample *models.VitalSample) error
	// ListSamples returns the patient's samples with timestamp in
	// [start, end), ordered by timestamp ascending.
	ListSamples(ctx context.Context, patientID string, start, end time.Time) ([]models.VitalSample, error)
	// RecentValues returns the newest non-missing readings of one metric
	// field, newest first, at most limit entries.
	RecentValues(ctx context.Context, patientID, field string, limit int) ([]float64, error)
}

// AggregateStore persists and reads window aggregation results. Records are
// append-only; recomputation writes a new record rather than upserting.
type AggregateStore interface {
	InsertAggregate(ctx context.Context, agg *models.AggregateWindow) error
	LatestAggregate(ctx context.Context, patientID string) (*models.AggregateWindow, error)
	// RecentAggregates returns the newest windows first, at most limit entries.
	RecentAggregates(ctx context.Context, patientID string, limit int) ([]models.AggregateWindow, error)
}
