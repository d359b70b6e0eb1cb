package classifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"vitalstream/internal/features"
	"vitalstream/internal/models"
)

func writeArtifact(t *testing.T, dir, name string, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal artifact: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	return path
}

func identityScaler() ScalerArtifact {
	n := len(features.FeatureNames)
	scaler := ScalerArtifact{
		Version:      "test",
		FeatureNames: append([]string{}, features.FeatureNames...),
		Mean:         make([]float64, n),
		Scale:        make([]float64, n),
	}
	for i := range scaler.Scale {
		scaler.Scale[i] = 1
	}
	return scaler
}

// hrModel scores classes purely on the (scaled) heart-rate feature so tests
// can steer the prediction deterministically.
func hrModel(classes int, probabilities bool) ModelArtifact {
	n := len(features.FeatureNames)
	model := ModelArtifact{
		Version:       "test",
		NumFeatures:   n,
		Coefficients:  make([][]float64, classes),
		Intercepts:    make([]float64, classes),
		Probabilities: probabilities,
	}
	for c := range model.Coefficients {
		row := make([]float64, n)
		row[0] = float64(c) * 0.1 // heart_rate
		model.Coefficients[c] = row
	}
	return model
}

func loadTestClassifier(t *testing.T, scaler ScalerArtifact, model ModelArtifact) *Classifier {
	t.Helper()
	dir := t.TempDir()
	scalerPath := writeArtifact(t, dir, "scaler.json", scaler)
	modelPath := writeArtifact(t, dir, "model.json", model)
	c, err := Load(modelPath, scalerPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return c
}

func testVector(heartRate float64) []float64 {
	v := make([]float64, len(features.FeatureNames))
	v[0] = heartRate
	return v
}

func TestLoadRejectsBrokenArtifacts(t *testing.T) {
	dir := t.TempDir()

	goodScaler := writeArtifact(t, dir, "scaler.json", identityScaler())
	goodModel := writeArtifact(t, dir, "model.json", hrModel(3, true))

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	badSchema := identityScaler()
	badSchema.FeatureNames[0] = "unexpected_feature"
	badSchemaPath := writeArtifact(t, dir, "bad_schema.json", badSchema)

	shortMean := identityScaler()
	shortMean.Mean = shortMean.Mean[:3]
	shortMeanPath := writeArtifact(t, dir, "short_mean.json", shortMean)

	raggedModel := hrModel(3, true)
	raggedModel.Coefficients[1] = raggedModel.Coefficients[1][:5]
	raggedModelPath := writeArtifact(t, dir, "ragged.json", raggedModel)

	noIntercepts := hrModel(3, true)
	noIntercepts.Intercepts = noIntercepts.Intercepts[:1]
	noInterceptsPath := writeArtifact(t, dir, "no_intercepts.json", noIntercepts)

	tests := []struct {
		name       string
		modelPath  string
		scalerPath string
	}{
		{"missing scaler file", goodModel, filepath.Join(dir, "absent.json")},
		{"missing model file", filepath.Join(dir, "absent.json"), goodScaler},
		{"corrupt scaler", goodModel, corrupt},
		{"corrupt model", corrupt, goodScaler},
		{"wrong feature name", goodModel, badSchemaPath},
		{"short mean vector", goodModel, shortMeanPath},
		{"ragged coefficients", raggedModelPath, goodScaler},
		{"intercept count mismatch", noInterceptsPath, goodScaler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.modelPath, tt.scalerPath); err == nil {
				t.Error("Expected load to fail")
			}
		})
	}
}

func TestClassifyRiskMapping(t *testing.T) {
	c := loadTestClassifier(t, identityScaler(), hrModel(3, true))

	tests := []struct {
		heartRate float64
		want      string
	}{
		{-50, models.RiskLow},
		{50, models.RiskHigh},
	}
	for _, tt := range tests {
		risk, confidence, err := c.Classify(testVector(tt.heartRate))
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if risk != tt.want {
			t.Errorf("heartRate=%v: expected %s, got %s", tt.heartRate, tt.want, risk)
		}
		if confidence == nil {
			t.Fatal("Expected a confidence value")
		}
		if *confidence <= 0 || *confidence > 1 {
			t.Errorf("Confidence out of range: %v", *confidence)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	c := loadTestClassifier(t, identityScaler(), hrModel(3, true))
	vector := testVector(20)

	firstRisk, firstConf, err := c.Classify(vector)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		risk, conf, err := c.Classify(vector)
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if risk != firstRisk || *conf != *firstConf {
			t.Fatalf("Classification is not deterministic: (%s, %v) vs (%s, %v)",
				firstRisk, *firstConf, risk, *conf)
		}
	}
}

func TestClassifyUnknownClassIndex(t *testing.T) {
	// A 4-class model can predict index 3, which has no risk mapping.
	c := loadTestClassifier(t, identityScaler(), hrModel(4, true))

	risk, _, err := c.Classify(testVector(100))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if risk != models.RiskUnknown {
		t.Errorf("Expected %s for unmapped class index, got %s", models.RiskUnknown, risk)
	}
}

func TestClassifyWithoutProbabilities(t *testing.T) {
	c := loadTestClassifier(t, identityScaler(), hrModel(3, false))

	risk, confidence, err := c.Classify(testVector(50))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if risk == "" {
		t.Error("Expected a risk level")
	}
	if confidence != nil {
		t.Errorf("Expected nil confidence, got %v", *confidence)
	}
}

func TestClassifyWrongVectorLength(t *testing.T) {
	c := loadTestClassifier(t, identityScaler(), hrModel(3, true))
	if _, _, err := c.Classify([]float64{1, 2, 3}); err == nil {
		t.Error("Expected error for wrong vector length")
	}
}

func TestClassifyZeroScale(t *testing.T) {
	scaler := identityScaler()
	scaler.Scale[0] = 0 // constant feature in training data
	c := loadTestClassifier(t, scaler, hrModel(3, true))

	risk, _, err := c.Classify(testVector(80))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if risk == "" {
		t.Error("Expected a risk level despite zero scale")
	}
}

func TestShippedArtifactsLoad(t *testing.T) {
	c, err := Load("../../artifacts/risk_model.json", "../../artifacts/feature_scaler.json")
	if err != nil {
		t.Fatalf("Shipped artifacts failed to load: %v", err)
	}
	risk, confidence, err := c.Classify(testVector(75))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if risk == "" || confidence == nil {
		t.Errorf("Expected risk and confidence from shipped artifacts, got (%q, %v)", risk, confidence)
	}
}
