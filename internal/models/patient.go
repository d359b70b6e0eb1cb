package models

import "time"

// Patient is the monitored subject. Identity is immutable; demographic
// fields are maintained by the admin flow and read here as classifier inputs.
type Patient struct {
	ID        string    `json:"id" bson:"id"`
	PatientID string    `json:"patient_id" bson:"patient_id"` // human-readable code, e.g. "PT-2024-001"
	Name      string    `json:"name" bson:"name"`
	Age       int       `json:"age" bson:"age"`
	Room      string    `json:"room" bson:"room"` // e.g. "ICU-12"
	Weight    float64   `json:"weight" bson:"weight"` // kilograms
	Height    float64   `json:"height" bson:"height"` // metres
	Gender    string    `json:"gender" bson:"gender"` // "Male" or "Female"
	Condition string    `json:"condition" bson:"condition"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Device is a bedside/wearable sensor unit. A device streams samples only
// while assigned to exactly one patient.
type Device struct {
	DeviceID   string     `json:"device_id"`             // hardware ID or MAC, e.g. "ESP32-123456"
	AssignedTo *string    `json:"assigned_to,omitempty"` // patient ID, nil when unassigned
	Active     bool       `json:"active"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
