// Package features turns a window of raw vital samples into the fixed
// feature vector consumed by the risk classifier.
package features

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"vitalstream/internal/models"
)

// FeatureNames is the canonical feature ordering. The scaler and model
// artifacts are trained against exactly this schema; any divergence is a
// deployment defect, not a recoverable condition.
var FeatureNames = []string{
	"heart_rate",
	"respiratory_rate",
	"body_temperature",
	"oxygen_saturation",
	"systolic_bp",
	"diastolic_bp",
	"age",
	"gender",
	"weight_kg",
	"height_m",
	"derived_hrv",
	"derived_pulse_pressure",
	"derived_bmi",
	"derived_map",
}

const (
	// DefaultSamplingRate is the assumed ECG waveform rate in Hz when the
	// device does not report one.
	DefaultSamplingRate = 100.0

	// hrvFallbackScale converts the heart-rate-series proxy into the same
	// millisecond range as waveform RMSSD (the trained model's unit).
	hrvFallbackScale = 200.0

	// minPeakDistanceSec rejects peak pairs closer than a physiologically
	// plausible beat interval (240 BPM ceiling).
	minPeakDistanceSec = 0.25
)

// ErrEmptyWindow is returned when extraction is attempted over no samples.
var ErrEmptyWindow = errors.New("feature extraction requires at least one sample")

// Averages holds the per-metric window means. A nil field means the window
// contained no readings of that metric.
type Averages struct {
	HeartRate   *float64
	SpO2        *float64
	Temperature *float64
	Resp        *float64
	Systolic    *float64
	Diastolic   *float64
	AccelX      *float64
	AccelY      *float64
	AccelZ      *float64
}

// WindowFeatures is the extractor output: the raw averages kept for the
// persisted aggregate, the HRV value with its provenance, and the ordered
// vector handed to the classifier.
type WindowFeatures struct {
	Averages   Averages
	HRV        float64
	HRVDefined bool
	Vector     []float64
}

// Extractor derives feature vectors from sample windows.
type Extractor struct {
	samplingRate float64
}

// NewExtractor creates an extractor assuming the given ECG sampling rate.
// Pass 0 for the default.
func NewExtractor(samplingRate float64) *Extractor {
	if samplingRate <= 0 {
		samplingRate = DefaultSamplingRate
	}
	return &Extractor{samplingRate: samplingRate}
}

// VerifySchema checks that the artifact feature ordering matches this
// extractor's output. Called once at startup; a mismatch is fatal.
func VerifySchema(artifactNames []string) error {
	if len(artifactNames) != len(FeatureNames) {
		return fmt.Errorf("feature schema mismatch: artifact has %d features, extractor produces %d",
			len(artifactNames), len(FeatureNames))
	}
	for i, name := range FeatureNames {
		if artifactNames[i] != name {
			return fmt.Errorf("feature schema mismatch at index %d: artifact %q, extractor %q",
				i, artifactNames[i], name)
		}
	}
	return nil
}

// Extract computes the feature vector for one patient's window. The sample
// slice must be non-empty and ordered by timestamp ascending.
func (e *Extractor) Extract(samples []models.VitalSample, patient models.Patient) (*WindowFeatures, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyWindow
	}

	avgs := Averages{
		HeartRate:   metricMean(samples, func(s *models.VitalSample) *float64 { return s.HeartRate }),
		SpO2:        metricMean(samples, func(s *models.VitalSample) *float64 { return s.SpO2 }),
		Temperature: metricMean(samples, func(s *models.VitalSample) *float64 { return s.Temperature }),
		Resp:        metricMean(samples, func(s *models.VitalSample) *float64 { return s.Resp }),
		Systolic:    metricMean(samples, func(s *models.VitalSample) *float64 { return s.Systolic }),
		Diastolic:   metricMean(samples, func(s *models.VitalSample) *float64 { return s.Diastolic }),
		AccelX:      metricMean(samples, func(s *models.VitalSample) *float64 { return s.AccelX }),
		AccelY:      metricMean(samples, func(s *models.VitalSample) *float64 { return s.AccelY }),
		AccelZ:      metricMean(samples, func(s *models.VitalSample) *float64 { return s.AccelZ }),
	}

	hrv, hrvDefined := e.deriveHRV(samples)

	// Missing metrics feed the classifier as 0. Lossy, but it is the
	// contract the model was trained under.
	systolic := orZero(avgs.Systolic)
	diastolic := orZero(avgs.Diastolic)

	bmi := 0.0
	if patient.Height > 0 {
		bmi = patient.Weight / (patient.Height * patient.Height)
	}
	meanArterial := (systolic + 2*diastolic) / 3
	pulsePressure := systolic - diastolic

	vector := []float64{
		orZero(avgs.HeartRate),
		orZero(avgs.Resp),
		orZero(avgs.Temperature),
		orZero(avgs.SpO2),
		systolic,
		diastolic,
		float64(patient.Age),
		encodeGender(patient.Gender),
		patient.Weight,
		patient.Height,
		hrv,
		pulsePressure,
		bmi,
		meanArterial,
	}

	return &WindowFeatures{
		Averages:   avgs,
		HRV:        hrv,
		HRVDefined: hrvDefined,
		Vector:     vector,
	}, nil
}

// deriveHRV attempts waveform-based RMSSD first, then the heart-rate-series
// proxy. Returns (0, false) when neither path has enough data; the window is
// still processed.
func (e *Extractor) deriveHRV(samples []models.VitalSample) (float64, bool) {
	var ecg []float64
	for i := range samples {
		if samples[i].ECG != nil {
			ecg = append(ecg, *samples[i].ECG)
		}
	}

	if len(ecg) >= 2 {
		peaks := detectPeaks(ecg, e.samplingRate)
		if len(peaks) >= 2 {
			if rmssd, ok := peakRMSSD(peaks, e.samplingRate); ok {
				return rmssd, true
			}
		}
	}

	var heartRates []float64
	for i := range samples {
		if samples[i].HeartRate != nil {
			heartRates = append(heartRates, *samples[i].HeartRate)
		}
	}
	if len(heartRates) >= 2 {
		diffs := make([]float64, len(heartRates)-1)
		for i := 1; i < len(heartRates); i++ {
			diffs[i-1] = heartRates[i] - heartRates[i-1]
		}
		sd, err := stats.StandardDeviation(stats.Float64Data(diffs))
		if err == nil && !math.IsNaN(sd) {
			return sd * hrvFallbackScale, true
		}
	}

	return 0, false
}

// detectPeaks finds R-peak candidates: local maxima above an adaptive
// threshold, separated by at least the minimum beat interval.
func detectPeaks(signal []float64, samplingRate float64) []int {
	if len(signal) < 3 {
		return nil
	}

	mean, err := stats.Mean(stats.Float64Data(signal))
	if err != nil {
		return nil
	}
	sd, err := stats.StandardDeviation(stats.Float64Data(signal))
	if err != nil {
		return nil
	}
	threshold := mean + 0.5*sd

	minDistance := int(minPeakDistanceSec * samplingRate)
	if minDistance < 1 {
		minDistance = 1
	}

	var peaks []int
	lastPeak := -minDistance
	for i := 1; i < len(signal)-1; i++ {
		if signal[i] <= threshold {
			continue
		}
		if signal[i] < signal[i-1] || signal[i] < signal[i+1] {
			continue
		}
		if i-lastPeak < minDistance {
			// Keep the taller of two crowding candidates.
			if len(peaks) > 0 && signal[i] > signal[peaks[len(peaks)-1]] {
				peaks[len(peaks)-1] = i
				lastPeak = i
			}
			continue
		}
		peaks = append(peaks, i)
		lastPeak = i
	}
	return peaks
}

// peakRMSSD computes the RMSSD of beat-to-beat intervals in milliseconds.
// Needs at least 3 peaks (2 intervals); with exactly 2 peaks there is no
// successive difference and the result would be degenerate.
func peakRMSSD(peaks []int, samplingRate float64) (float64, bool) {
	if len(peaks) < 2 {
		return 0, false
	}

	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = float64(peaks[i]-peaks[i-1]) / samplingRate * 1000 // ms
	}
	if len(intervals) == 1 {
		// Single interval: no variability measurable, report 0 but defined.
		return 0, true
	}

	var sumSq float64
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(intervals)-1)), true
}

func metricMean(samples []models.VitalSample, get func(*models.VitalSample) *float64) *float64 {
	var values []float64
	for i := range samples {
		if v := get(&samples[i]); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	mean, err := stats.Mean(stats.Float64Data(values))
	if err != nil {
		return nil
	}
	return &mean
}

func encodeGender(gender string) float64 {
	// Unrecognized values default to the first code, matching the
	// training-data encoding.
	if strings.EqualFold(gender, "female") {
		return 1
	}
	return 0
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
