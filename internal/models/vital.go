package models

import "time"

// VitalSample is one immutable timestamped reading from a device. All metric
// fields are optional; devices report whatever sensors they carry.
type VitalSample struct {
	ID           string     `json:"id" bson:"_id"`
	Timestamp    time.Time  `json:"timestamp" bson:"timestamp"`
	PatientID    string     `json:"patient_id" bson:"patient_id"`
	DeviceID     string     `json:"device_id" bson:"device_id"`
	HeartRate    *float64   `json:"heart_rate,omitempty" bson:"heart_rate,omitempty"` // BPM
	SpO2         *float64   `json:"spo2,omitempty" bson:"spo2,omitempty"`             // percent
	Temperature  *float64   `json:"temperature,omitempty" bson:"temperature,omitempty"`
	ECG          *float64   `json:"ecg,omitempty" bson:"ecg,omitempty"` // single waveform amplitude
	AccelX       *float64   `json:"accel_x,omitempty" bson:"accel_x,omitempty"`
	AccelY       *float64   `json:"accel_y,omitempty" bson:"accel_y,omitempty"`
	AccelZ       *float64   `json:"accel_z,omitempty" bson:"accel_z,omitempty"`
	Systolic     *float64   `json:"systolic,omitempty" bson:"systolic,omitempty"`
	Diastolic    *float64   `json:"diastolic,omitempty" bson:"diastolic,omitempty"`
	Resp         *float64   `json:"resp,omitempty" bson:"resp,omitempty"` // breaths per minute
	MotionStatus *string    `json:"motion_status,omitempty" bson:"motion_status,omitempty"` // e.g. "Normal Activity"
}

// VitalsUploadRequest is the flat ingestion record posted by a device.
// Only device_id is required; metric fields mirror VitalSample.
type VitalsUploadRequest struct {
	DeviceID     string   `json:"device_id"`
	HeartRate    *float64 `json:"heart_rate,omitempty"`
	SpO2         *float64 `json:"spo2,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	ECG          *float64 `json:"ecg,omitempty"`
	AccelX       *float64 `json:"accel_x,omitempty"`
	AccelY       *float64 `json:"accel_y,omitempty"`
	AccelZ       *float64 `json:"accel_z,omitempty"`
	Systolic     *float64 `json:"systolic,omitempty"`
	Diastolic    *float64 `json:"diastolic,omitempty"`
	Resp         *float64 `json:"resp,omitempty"`
	MotionStatus *string  `json:"motion_status,omitempty"`
}
