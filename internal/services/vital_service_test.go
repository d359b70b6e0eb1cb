package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"vitalstream/internal/config"
	"vitalstream/internal/models"
	"vitalstream/internal/store"
)

func f(v float64) *float64 { return &v }

type vitalFixture struct {
	patients    *store.MemoryPatientStore
	devices     *store.MemoryDeviceStore
	samples     *store.MemorySampleStore
	aggregates  *store.MemoryAggregateStore
	connManager *ConnectionManager
	service     *VitalService
}

func newVitalFixture(t *testing.T, limiter *DeviceRateLimiter) *vitalFixture {
	t.Helper()
	fx := &vitalFixture{
		patients:    store.NewMemoryPatientStore(),
		devices:     store.NewMemoryDeviceStore(),
		samples:     store.NewMemorySampleStore(),
		aggregates:  store.NewMemoryAggregateStore(),
		connManager: NewConnectionManager(),
	}
	broadcast := NewBroadcastService(fx.connManager, nil, nil, "test-instance")
	fx.service = NewVitalService(
		fx.patients, fx.devices, fx.samples, fx.aggregates,
		broadcast, nil, limiter, config.DefaultProfile(), nil,
	)
	return fx
}

func (fx *vitalFixture) addAssignedDevice(deviceID, patientID string) {
	fx.patients.Put(models.Patient{ID: patientID, PatientID: "P-" + patientID, Name: "Test Patient", Age: 55})
	fx.devices.Put(models.Device{DeviceID: deviceID, AssignedTo: &patientID, Active: true})
}

// subscribe attaches a fake subscriber with the given write buffer size.
func (fx *vitalFixture) subscribe(connID, patientID string, buffer int) *models.SubscriberConnection {
	conn := &models.SubscriberConnection{
		ConnID:    connID,
		PatientID: patientID,
		CreatedAt: time.Now(),
		WriteChan: make(chan models.ServerMessage, buffer),
		StopChan:  make(chan bool, 1),
	}
	fx.connManager.Add(conn)
	return conn
}

func TestIngestStoresSampleAndTouchesDevice(t *testing.T) {
	fx := newVitalFixture(t, nil)
	fx.addAssignedDevice("dev-1", "p1")

	req := &models.VitalsUploadRequest{
		DeviceID:  "dev-1",
		HeartRate: f(78),
		SpO2:      f(97),
	}
	sample, err := fx.service.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if sample.PatientID != "p1" {
		t.Errorf("Expected patient resolved from device assignment, got %q", sample.PatientID)
	}
	if sample.ID == "" || sample.Timestamp.IsZero() {
		t.Error("Expected server-assigned ID and timestamp")
	}
	if fx.samples.Count() != 1 {
		t.Errorf("Expected 1 stored sample, got %d", fx.samples.Count())
	}

	device, err := fx.devices.GetDevice(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if device.LastSeen == nil {
		t.Error("Expected device last_seen to be updated")
	}
}

func TestIngestRejectsInvalidDevices(t *testing.T) {
	fx := newVitalFixture(t, nil)
	fx.addAssignedDevice("dev-1", "p1")
	fx.devices.Put(models.Device{DeviceID: "dev-unassigned", Active: true})
	inactivePatient := "p1"
	fx.devices.Put(models.Device{DeviceID: "dev-inactive", AssignedTo: &inactivePatient, Active: false})

	sub := fx.subscribe("c1", "p1", 10)

	tests := []struct {
		name     string
		deviceID string
		wantErr  error
	}{
		{"unknown device", "dev-nope", ErrUnknownDevice},
		{"unassigned device", "dev-unassigned", ErrDeviceUnassigned},
		{"inactive device", "dev-inactive", ErrDeviceInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.service.Ingest(context.Background(), &models.VitalsUploadRequest{
				DeviceID:  tt.deviceID,
				HeartRate: f(70),
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if fx.samples.Count() != 0 {
		t.Errorf("Expected no samples stored for rejected uploads, got %d", fx.samples.Count())
	}
	select {
	case msg := <-sub.WriteChan:
		t.Errorf("Expected no fanout for rejected uploads, got %+v", msg)
	default:
	}
}

func TestIngestRateLimited(t *testing.T) {
	fx := newVitalFixture(t, NewDeviceRateLimiter(1, 2))
	fx.addAssignedDevice("dev-1", "p1")

	var limited int
	for i := 0; i < 10; i++ {
		_, err := fx.service.Ingest(context.Background(), &models.VitalsUploadRequest{
			DeviceID:  "dev-1",
			HeartRate: f(70),
		})
		if errors.Is(err, ErrRateLimited) {
			limited++
		} else if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if limited == 0 {
		t.Error("Expected some uploads to be rate limited")
	}
	if fx.samples.Count() == 0 {
		t.Error("Expected burst uploads to be stored")
	}
	if fx.samples.Count()+limited != 10 {
		t.Errorf("Stored (%d) + limited (%d) should account for all uploads", fx.samples.Count(), limited)
	}
}

func TestIngestFanoutEnvelope(t *testing.T) {
	fx := newVitalFixture(t, nil)
	fx.addAssignedDevice("dev-1", "p1")
	sub := fx.subscribe("c1", "p1", 10)

	conf := 0.87
	fx.aggregates.InsertAggregate(context.Background(), &models.AggregateWindow{
		ID:         "agg-1",
		PatientID:  "p1",
		StartTime:  time.Now().Add(-5 * time.Minute),
		EndTime:    time.Now(),
		RiskLevel:  models.RiskModerate,
		Confidence: &conf,
		Summary:    "Mild tachycardia developing.",
	})

	if _, err := fx.service.Ingest(context.Background(), &models.VitalsUploadRequest{
		DeviceID:  "dev-1",
		HeartRate: f(92),
	}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	select {
	case msg := <-sub.WriteChan:
		if msg.Type != "vitals_update" {
			t.Fatalf("Expected vitals_update, got %s", msg.Type)
		}
		if msg.Data == nil {
			t.Fatal("Expected update payload")
		}
		if msg.Data.RiskLevel != models.RiskModerate {
			t.Errorf("Expected risk from latest aggregate, got %s", msg.Data.RiskLevel)
		}
		if msg.Data.Confidence != 87 {
			t.Errorf("Expected confidence on 0-100 scale, got %v", msg.Data.Confidence)
		}
		if len(msg.Data.HRData) != 1 || msg.Data.HRData[0] != 92 {
			t.Errorf("Expected heart-rate history [92], got %v", msg.Data.HRData)
		}
		if msg.Data.Patient.ID != "p1" {
			t.Errorf("Expected patient context, got %+v", msg.Data.Patient)
		}
	default:
		t.Fatal("Expected a fanout message")
	}
}

func TestIngestFanoutSkipsOtherPatients(t *testing.T) {
	fx := newVitalFixture(t, nil)
	fx.addAssignedDevice("dev-1", "p1")
	fx.addAssignedDevice("dev-2", "p2")
	subP2 := fx.subscribe("c2", "p2", 10)

	if _, err := fx.service.Ingest(context.Background(), &models.VitalsUploadRequest{
		DeviceID:  "dev-1",
		HeartRate: f(70),
	}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	select {
	case msg := <-subP2.WriteChan:
		t.Errorf("Subscriber of another patient received %+v", msg)
	default:
	}
}

// A subscriber that never drains its write buffer must not block or fail
// ingestion.
func TestSlowSubscriberNeverBlocksIngestion(t *testing.T) {
	fx := newVitalFixture(t, nil)
	fx.addAssignedDevice("dev-1", "p1")
	fx.subscribe("slow", "p1", 1) // fills after one message, never drained

	const uploads = 1000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < uploads; i++ {
			if _, err := fx.service.Ingest(context.Background(), &models.VitalsUploadRequest{
				DeviceID:  "dev-1",
				HeartRate: f(70 + float64(i%20)),
			}); err != nil {
				t.Errorf("Ingest %d failed: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Ingestion blocked behind a slow subscriber")
	}
	if fx.samples.Count() != uploads {
		t.Errorf("Expected %d stored samples, got %d", uploads, fx.samples.Count())
	}
}
