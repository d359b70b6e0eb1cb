package models

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// ClientMessage represents a message from a dashboard subscriber.
// Subscribers are read-mostly; the only inbound traffic is heartbeats.
type ClientMessage struct {
	Type string `json:"type"` // "ping"
}

// ServerMessage is the envelope for every frame pushed to a subscriber.
type ServerMessage struct {
	Type    string        `json:"type"` // "connection_established", "vitals_update", "pong"
	Message string        `json:"message,omitempty"`
	Data    *VitalsUpdate `json:"data,omitempty"`
}

// VitalsUpdate is the sample-tick fanout payload: the newest raw sample, the
// latest known aggregate state, and a short rolling history read fresh from
// the sample store at publish time. Fields are fixed and named; the payload
// is validated at construction, never assembled ad hoc.
type VitalsUpdate struct {
	RiskLevel  string            `json:"risk_level"`
	Confidence float64           `json:"confidence"` // 0-100 scale for the dashboard
	Summary    string            `json:"summary"`
	HRData     []float64         `json:"hr_data"`
	SpO2Data   []float64         `json:"spo2_data"`
	ECGData    []float64         `json:"ecg_data"`
	Aggregates []AggregateWindow `json:"aggregates"`
	Patient    Patient           `json:"patient"`
	Sample     VitalSample       `json:"sample"`
}

// NewVitalsUpdate builds a validated sample-tick payload. The latest
// aggregate may be nil (no cycle has completed yet); risk context then
// degrades to unknown/empty rather than being fabricated.
func NewVitalsUpdate(patient Patient, sample VitalSample, latest *AggregateWindow, recent []AggregateWindow, hr, spo2, ecg []float64) (*VitalsUpdate, error) {
	if patient.ID == "" {
		return nil, errors.New("vitals update requires a patient")
	}
	if sample.PatientID != patient.ID {
		return nil, errors.New("sample does not belong to patient")
	}

	update := &VitalsUpdate{
		RiskLevel:  RiskUnknown,
		Summary:    "",
		HRData:     hr,
		SpO2Data:   spo2,
		ECGData:    ecg,
		Aggregates: recent,
		Patient:    patient,
		Sample:     sample,
	}
	if latest != nil {
		update.RiskLevel = latest.RiskLevel
		update.Summary = latest.Summary
		if latest.Confidence != nil {
			update.Confidence = *latest.Confidence * 100
		}
	}
	return update, nil
}

// SubscriberConnection tracks one live dashboard websocket joined to a
// patient channel.
type SubscriberConnection struct {
	ConnID    string
	PatientID string
	ClientIP  string
	Conn      *websocket.Conn
	CreatedAt time.Time
	WriteChan chan ServerMessage
	StopChan  chan bool
	Mutex     sync.Mutex
	closed    bool
}

// SafeSend delivers a message to the write loop, returning false if the
// connection has been torn down.
func (sc *SubscriberConnection) SafeSend(msg ServerMessage) bool {
	sc.Mutex.Lock()
	if sc.closed {
		sc.Mutex.Unlock()
		return false
	}
	sc.Mutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			sc.Mutex.Lock()
			sc.closed = true
			sc.Mutex.Unlock()
		}
	}()

	sc.WriteChan <- msg
	return true
}

// TrySend is the fire-and-forget variant used by fanout: if the subscriber's
// buffer is full the message is dropped so a slow reader can never stall
// ingestion.
func (sc *SubscriberConnection) TrySend(msg ServerMessage) bool {
	sc.Mutex.Lock()
	if sc.closed {
		sc.Mutex.Unlock()
		return false
	}
	sc.Mutex.Unlock()

	defer func() {
		_ = recover()
	}()

	select {
	case sc.WriteChan <- msg:
		return true
	default:
		return false
	}
}

// MarkClosed flags the connection so no further sends are attempted.
func (sc *SubscriberConnection) MarkClosed() {
	sc.Mutex.Lock()
	sc.closed = true
	sc.Mutex.Unlock()
}
