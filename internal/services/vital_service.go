package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vitalstream/internal/config"
	"vitalstream/internal/models"
	"vitalstream/internal/store"
)

// Ingestion validation failures, surfaced synchronously to the device.
var (
	ErrUnknownDevice    = errors.New("invalid device ID")
	ErrDeviceUnassigned = errors.New("device not assigned to any patient")
	ErrDeviceInactive   = errors.New("device is not active")
	ErrRateLimited      = errors.New("device is sending samples too fast")
)

// VitalService owns the ingestion path: validate the device, append the
// sample, and fan the update out to live subscribers. Fanout is strictly
// best-effort; once a sample is persisted the request succeeds.
type VitalService struct {
	patients   store.PatientStore
	devices    store.DeviceStore
	samples    store.SampleStore
	aggregates store.AggregateStore
	broadcast  *BroadcastService
	aggCache   *AggregateCache
	limiter    *DeviceRateLimiter
	profile    config.Profile
	metrics    *Metrics
}

// NewVitalService creates the ingestion service
func NewVitalService(
	patients store.PatientStore,
	devices store.DeviceStore,
	samples store.SampleStore,
	aggregates store.AggregateStore,
	broadcast *BroadcastService,
	aggCache *AggregateCache,
	limiter *DeviceRateLimiter,
	profile config.Profile,
	metrics *Metrics,
) *VitalService {
	return &VitalService{
		patients:   patients,
		devices:    devices,
		samples:    samples,
		aggregates: aggregates,
		broadcast:  broadcast,
		aggCache:   aggCache,
		limiter:    limiter,
		profile:    profile,
		metrics:    metrics,
	}
}

// Ingest validates and stores one uploaded sample, then publishes the
// sample-tick update. Validation failures store nothing and emit nothing.
func (s *VitalService) Ingest(ctx context.Context, req *models.VitalsUploadRequest) (*models.VitalSample, error) {
	device, err := s.devices.GetDevice(ctx, req.DeviceID)
	if errors.Is(err, store.ErrDeviceNotFound) {
		s.reject("unknown_device")
		return nil, ErrUnknownDevice
	}
	if err != nil {
		return nil, fmt.Errorf("device lookup failed: %w", err)
	}
	if device.AssignedTo == nil {
		s.reject("unassigned_device")
		return nil, ErrDeviceUnassigned
	}
	if !device.Active {
		s.reject("inactive_device")
		return nil, ErrDeviceInactive
	}
	if s.limiter != nil && !s.limiter.Allow(device.DeviceID) {
		s.reject("rate_limited")
		return nil, ErrRateLimited
	}

	now := time.Now().UTC()
	sample := &models.VitalSample{
		ID:           uuid.New().String(),
		Timestamp:    now,
		PatientID:    *device.AssignedTo,
		DeviceID:     device.DeviceID,
		HeartRate:    req.HeartRate,
		SpO2:         req.SpO2,
		Temperature:  req.Temperature,
		ECG:          req.ECG,
		AccelX:       req.AccelX,
		AccelY:       req.AccelY,
		AccelZ:       req.AccelZ,
		Systolic:     req.Systolic,
		Diastolic:    req.Diastolic,
		Resp:         req.Resp,
		MotionStatus: req.MotionStatus,
	}

	if err := s.samples.InsertSample(ctx, sample); err != nil {
		return nil, fmt.Errorf("failed to store sample: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SamplesIngested.Inc()
	}

	if err := s.devices.TouchDevice(ctx, device.DeviceID, now); err != nil {
		slog.Warn("failed to update device last_seen", "device_id", device.DeviceID, "error", err)
	}

	// The sample is durable; everything past this point is best-effort.
	s.publishSampleTick(ctx, sample)

	return sample, nil
}

// publishSampleTick assembles the fanout payload from fresh store reads and
// the latest-aggregate cache, then broadcasts it.
func (s *VitalService) publishSampleTick(ctx context.Context, sample *models.VitalSample) {
	patient, err := s.patients.GetPatient(ctx, sample.PatientID)
	if err != nil {
		slog.Warn("fanout skipped: patient lookup failed", "patient_id", sample.PatientID, "error", err)
		return
	}

	hr, err := s.samples.RecentValues(ctx, sample.PatientID, "heart_rate", s.profile.HRHistorySize)
	if err != nil {
		slog.Warn("fanout: heart-rate history read failed", "patient_id", sample.PatientID, "error", err)
	}
	spo2, err := s.samples.RecentValues(ctx, sample.PatientID, "spo2", s.profile.SpO2HistorySize)
	if err != nil {
		slog.Warn("fanout: spo2 history read failed", "patient_id", sample.PatientID, "error", err)
	}
	ecg, err := s.samples.RecentValues(ctx, sample.PatientID, "ecg", s.profile.ECGHistorySize)
	if err != nil {
		slog.Warn("fanout: ecg history read failed", "patient_id", sample.PatientID, "error", err)
	}

	latest := s.latestAggregate(ctx, sample.PatientID)
	recent, err := s.aggregates.RecentAggregates(ctx, sample.PatientID, s.profile.AggregateHistorySize)
	if err != nil {
		slog.Warn("fanout: aggregate history read failed", "patient_id", sample.PatientID, "error", err)
	}

	update, err := models.NewVitalsUpdate(*patient, *sample, latest, recent, hr, spo2, ecg)
	if err != nil {
		slog.Warn("fanout: invalid update payload", "patient_id", sample.PatientID, "error", err)
		return
	}

	s.broadcast.PublishVitals(sample.PatientID, update)
}

func (s *VitalService) latestAggregate(ctx context.Context, patientID string) *models.AggregateWindow {
	if s.aggCache != nil {
		if agg := s.aggCache.Get(patientID); agg != nil {
			return agg
		}
	}
	agg, err := s.aggregates.LatestAggregate(ctx, patientID)
	if err != nil {
		slog.Warn("latest aggregate read failed", "patient_id", patientID, "error", err)
		return nil
	}
	if agg != nil && s.aggCache != nil {
		s.aggCache.Set(patientID, agg)
	}
	return agg
}

func (s *VitalService) reject(reason string) {
	if s.metrics != nil {
		s.metrics.SamplesRejected.WithLabelValues(reason).Inc()
	}
}
