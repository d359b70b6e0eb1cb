// Package classifier loads the pretrained risk model and feature scaler
// artifacts and serves risk predictions. Artifacts are read once at startup
// and immutable for the process lifetime; Classify is safe for
// unsynchronized concurrent use.
package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"vitalstream/internal/features"
	"vitalstream/internal/models"
)

// riskTable maps model class indices to risk levels. An index outside this
// table yields RiskUnknown rather than failing the window.
var riskTable = map[int]string{
	0: models.RiskLow,
	1: models.RiskModerate,
	2: models.RiskHigh,
}

// ScalerArtifact is the standardization parameters the model was trained
// with. Feature ordering must match features.FeatureNames exactly.
type ScalerArtifact struct {
	Version      string    `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// ModelArtifact is a multinomial logistic regression export: one weight row
// and intercept per class over the scaled feature vector.
type ModelArtifact struct {
	Version       string      `json:"version"`
	NumFeatures   int         `json:"n_features"`
	Coefficients  [][]float64 `json:"coefficients"`
	Intercepts    []float64   `json:"intercepts"`
	Probabilities bool        `json:"probabilities"`
}

// Classifier holds the loaded artifacts.
type Classifier struct {
	scaler ScalerArtifact
	model  ModelArtifact
}

// Load reads and validates both artifacts. Any failure here is a deployment
// defect and must abort startup; the process must not serve without a
// working classifier.
func Load(modelPath, scalerPath string) (*Classifier, error) {
	var scaler ScalerArtifact
	if err := readArtifact(scalerPath, &scaler); err != nil {
		return nil, fmt.Errorf("failed to load feature scaler: %w", err)
	}
	var model ModelArtifact
	if err := readArtifact(modelPath, &model); err != nil {
		return nil, fmt.Errorf("failed to load risk model: %w", err)
	}

	if err := features.VerifySchema(scaler.FeatureNames); err != nil {
		return nil, err
	}
	n := len(scaler.FeatureNames)
	if len(scaler.Mean) != n || len(scaler.Scale) != n {
		return nil, fmt.Errorf("scaler artifact shape mismatch: %d features, %d means, %d scales",
			n, len(scaler.Mean), len(scaler.Scale))
	}
	if model.NumFeatures != n {
		return nil, fmt.Errorf("model expects %d features, scaler provides %d", model.NumFeatures, n)
	}
	if len(model.Coefficients) == 0 || len(model.Coefficients) != len(model.Intercepts) {
		return nil, fmt.Errorf("model artifact shape mismatch: %d coefficient rows, %d intercepts",
			len(model.Coefficients), len(model.Intercepts))
	}
	for i, row := range model.Coefficients {
		if len(row) != n {
			return nil, fmt.Errorf("model coefficient row %d has %d weights, expected %d", i, len(row), n)
		}
	}

	return &Classifier{scaler: scaler, model: model}, nil
}

func readArtifact(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("corrupt artifact %s: %w", path, err)
	}
	return nil
}

// Classify scales the feature vector and returns the predicted risk level
// with the model's probability for that class. Confidence is nil when the
// loaded model does not expose probabilities; it is never guessed.
// Pure: the same vector always yields the same result for the lifetime of
// the loaded artifacts.
func (c *Classifier) Classify(vector []float64) (string, *float64, error) {
	if len(vector) != len(c.scaler.FeatureNames) {
		return "", nil, fmt.Errorf("feature vector has %d values, model expects %d",
			len(vector), len(c.scaler.FeatureNames))
	}

	scaled := make([]float64, len(vector))
	for i, v := range vector {
		scale := c.scaler.Scale[i]
		if scale == 0 {
			scale = 1
		}
		scaled[i] = (v - c.scaler.Mean[i]) / scale
	}

	scores := make([]float64, len(c.model.Coefficients))
	for class, row := range c.model.Coefficients {
		score := c.model.Intercepts[class]
		for i, w := range row {
			score += w * scaled[i]
		}
		scores[class] = score
	}

	probs := softmax(scores)
	predicted := 0
	for i := range probs {
		if probs[i] > probs[predicted] {
			predicted = i
		}
	}

	risk, ok := riskTable[predicted]
	if !ok {
		risk = models.RiskUnknown
	}

	if !c.model.Probabilities {
		return risk, nil, nil
	}
	confidence := probs[predicted]
	return risk, &confidence, nil
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	var sum float64
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
