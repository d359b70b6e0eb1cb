package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"vitalstream/internal/models"
)

// In-memory store implementations used in tests and for single-node
// development runs without the backing databases.

// MemoryPatientStore holds patients in a map.
type MemoryPatientStore struct {
	mu       sync.RWMutex
	patients map[string]models.Patient
}

func NewMemoryPatientStore() *MemoryPatientStore {
	return &MemoryPatientStore{patients: make(map[string]models.Patient)}
}

// Put inserts or replaces a patient (test seeding helper).
func (s *MemoryPatientStore) Put(p models.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

func (s *MemoryPatientStore) GetPatient(_ context.Context, id string) (*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (s *MemoryPatientStore) ListPatients(_ context.Context) ([]models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patients := make([]models.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		patients = append(patients, p)
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].PatientID < patients[j].PatientID })
	return patients, nil
}

// MemoryDeviceStore holds devices in a map.
type MemoryDeviceStore struct {
	mu      sync.RWMutex
	devices map[string]models.Device
}

func NewMemoryDeviceStore() *MemoryDeviceStore {
	return &MemoryDeviceStore{devices: make(map[string]models.Device)}
}

func (s *MemoryDeviceStore) Put(d models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.DeviceID] = d
}

func (s *MemoryDeviceStore) GetDevice(_ context.Context, deviceID string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return &d, nil
}

func (s *MemoryDeviceStore) TouchDevice(_ context.Context, deviceID string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return ErrDeviceNotFound
	}
	d.LastSeen = &seenAt
	s.devices[deviceID] = d
	return nil
}

// MemorySampleStore holds samples in an append-only slice.
type MemorySampleStore struct {
	mu      sync.RWMutex
	samples []models.VitalSample
}

func NewMemorySampleStore() *MemorySampleStore {
	return &MemorySampleStore{}
}

func (s *MemorySampleStore) InsertSample(_ context.Context, sample *models.VitalSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, *sample)
	return nil
}

func (s *MemorySampleStore) ListSamples(_ context.Context, patientID string, start, end time.Time) ([]models.VitalSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.VitalSample
	for _, sample := range s.samples {
		if sample.PatientID != patientID {
			continue
		}
		if sample.Timestamp.Before(start) || !sample.Timestamp.Before(end) {
			continue
		}
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemorySampleStore) RecentValues(_ context.Context, patientID, field string, limit int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]models.VitalSample, 0, len(s.samples))
	for _, sample := range s.samples {
		if sample.PatientID == patientID {
			ordered = append(ordered, sample)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.After(ordered[j].Timestamp) })

	values := make([]float64, 0, limit)
	for _, sample := range ordered {
		if len(values) >= limit {
			break
		}
		if v := metricValue(&sample, field); v != nil {
			values = append(values, *v)
		}
	}
	return values, nil
}

// Count returns the number of stored samples (test helper).
func (s *MemorySampleStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

func metricValue(sample *models.VitalSample, field string) *float64 {
	switch field {
	case "heart_rate":
		return sample.HeartRate
	case "spo2":
		return sample.SpO2
	case "temperature":
		return sample.Temperature
	case "ecg":
		return sample.ECG
	case "systolic":
		return sample.Systolic
	case "diastolic":
		return sample.Diastolic
	case "resp":
		return sample.Resp
	default:
		return nil
	}
}

// MemoryAggregateStore holds aggregate windows in an append-only slice.
type MemoryAggregateStore struct {
	mu         sync.RWMutex
	aggregates []models.AggregateWindow
}

func NewMemoryAggregateStore() *MemoryAggregateStore {
	return &MemoryAggregateStore{}
}

func (s *MemoryAggregateStore) InsertAggregate(_ context.Context, agg *models.AggregateWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates = append(s.aggregates, *agg)
	return nil
}

func (s *MemoryAggregateStore) LatestAggregate(_ context.Context, patientID string) (*models.AggregateWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.AggregateWindow
	for i := range s.aggregates {
		agg := s.aggregates[i]
		if agg.PatientID != patientID {
			continue
		}
		if latest == nil || agg.StartTime.After(latest.StartTime) {
			latest = &agg
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryAggregateStore) RecentAggregates(_ context.Context, patientID string, limit int) ([]models.AggregateWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AggregateWindow
	for _, agg := range s.aggregates {
		if agg.PatientID == patientID {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored aggregate (test helper).
func (s *MemoryAggregateStore) All() []models.AggregateWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AggregateWindow, len(s.aggregates))
	copy(out, s.aggregates)
	return out
}
