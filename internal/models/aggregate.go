package models

import "time"

// Risk levels produced by the classifier. RiskUnknown covers class indices
// the mapping table does not know about.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
	RiskUnknown  = "unknown"
)

// AggregateWindow is the persisted output of one completed aggregation cycle
// for one patient. Immutable once created; a window is never updated or
// deleted, and recomputing an overlapping period always writes a new record.
type AggregateWindow struct {
	ID             string    `json:"id" bson:"_id"`
	PatientID      string    `json:"patient_id" bson:"patient_id"`
	StartTime      time.Time `json:"start_time" bson:"start_time"`
	EndTime        time.Time `json:"end_time" bson:"end_time"`
	AvgHeartRate   *float64  `json:"avg_heart_rate,omitempty" bson:"avg_heart_rate,omitempty"`
	AvgSpO2        *float64  `json:"avg_spo2,omitempty" bson:"avg_spo2,omitempty"`
	AvgTemperature *float64  `json:"avg_temperature,omitempty" bson:"avg_temperature,omitempty"`
	AvgResp        *float64  `json:"avg_resp,omitempty" bson:"avg_resp,omitempty"`
	AvgSystolic    *float64  `json:"avg_systolic,omitempty" bson:"avg_systolic,omitempty"`
	AvgDiastolic   *float64  `json:"avg_diastolic,omitempty" bson:"avg_diastolic,omitempty"`
	AvgAccelX      *float64  `json:"avg_accel_x,omitempty" bson:"avg_accel_x,omitempty"`
	AvgAccelY      *float64  `json:"avg_accel_y,omitempty" bson:"avg_accel_y,omitempty"`
	AvgAccelZ      *float64  `json:"avg_accel_z,omitempty" bson:"avg_accel_z,omitempty"`
	RiskLevel      string    `json:"risk_level" bson:"risk_level"`
	// Confidence is the model's probability for the predicted class.
	// Nil when the loaded model does not expose probabilities; never fabricated.
	Confidence *float64  `json:"confidence,omitempty" bson:"confidence,omitempty"`
	Summary    string    `json:"summary" bson:"summary"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
