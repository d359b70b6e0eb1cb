package services

import (
	"context"
	"fmt"

	"vitalstream/internal/config"
	"vitalstream/internal/models"
	"vitalstream/internal/store"
)

// Snapshot is the initial-state payload a dashboard fetches before relying
// on fanout deltas. Subscribers joining mid-stream receive no backlog, so
// this is the only way to see history on connect.
type Snapshot struct {
	Patient    models.Patient           `json:"patient"`
	RiskLevel  string                   `json:"risk_level"`
	Confidence float64                  `json:"confidence"` // 0-100 scale
	Summary    string                   `json:"summary"`
	HRData     []float64                `json:"hr_data"`
	SpO2Data   []float64                `json:"spo2_data"`
	ECGData    []float64                `json:"ecg_data"`
	Aggregates []models.AggregateWindow `json:"aggregates"`
}

// SnapshotService serves the query boundary: patient roster and latest
// rolling window reads.
type SnapshotService struct {
	patients   store.PatientStore
	samples    store.SampleStore
	aggregates store.AggregateStore
	profile    config.Profile
}

// NewSnapshotService creates the snapshot service
func NewSnapshotService(patients store.PatientStore, samples store.SampleStore, aggregates store.AggregateStore, profile config.Profile) *SnapshotService {
	return &SnapshotService{
		patients:   patients,
		samples:    samples,
		aggregates: aggregates,
		profile:    profile,
	}
}

// ListPatients returns the patient roster
func (s *SnapshotService) ListPatients(ctx context.Context) ([]models.Patient, error) {
	return s.patients.ListPatients(ctx)
}

// GetSnapshot returns a patient's latest rolling window state
func (s *SnapshotService) GetSnapshot(ctx context.Context, patientID string) (*Snapshot, error) {
	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Patient:   *patient,
		RiskLevel: models.RiskUnknown,
	}

	if snapshot.HRData, err = s.samples.RecentValues(ctx, patientID, "heart_rate", s.profile.HRHistorySize); err != nil {
		return nil, fmt.Errorf("failed to read heart-rate history: %w", err)
	}
	if snapshot.SpO2Data, err = s.samples.RecentValues(ctx, patientID, "spo2", s.profile.SpO2HistorySize); err != nil {
		return nil, fmt.Errorf("failed to read spo2 history: %w", err)
	}
	if snapshot.ECGData, err = s.samples.RecentValues(ctx, patientID, "ecg", s.profile.ECGHistorySize); err != nil {
		return nil, fmt.Errorf("failed to read ecg history: %w", err)
	}
	if snapshot.Aggregates, err = s.aggregates.RecentAggregates(ctx, patientID, s.profile.AggregateHistorySize); err != nil {
		return nil, fmt.Errorf("failed to read aggregate history: %w", err)
	}

	if len(snapshot.Aggregates) > 0 {
		latest := snapshot.Aggregates[0]
		snapshot.RiskLevel = latest.RiskLevel
		snapshot.Summary = latest.Summary
		if latest.Confidence != nil {
			snapshot.Confidence = *latest.Confidence * 100
		}
	}

	return snapshot, nil
}
