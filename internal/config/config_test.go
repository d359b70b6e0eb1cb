package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "3001" {
		t.Errorf("Expected default port 3001, got %s", cfg.Port)
	}
	if cfg.AggregationInterval != 5*time.Minute {
		t.Errorf("Expected 5m aggregation interval, got %s", cfg.AggregationInterval)
	}
	if cfg.Profile.HRHistorySize != 20 || cfg.Profile.ECGHistorySize != 200 {
		t.Errorf("Unexpected default profile: %+v", cfg.Profile)
	}
	if cfg.NarrativeModel != "gpt-4o" {
		t.Errorf("Expected default narrative model, got %s", cfg.NarrativeModel)
	}
}

func TestLoadRejectsShortInterval(t *testing.T) {
	t.Setenv("AGGREGATION_INTERVAL", "10s")
	if _, err := Load(); err == nil {
		t.Error("Expected sub-minute interval to be rejected")
	}
}

func TestLoadRejectsInvalidCron(t *testing.T) {
	t.Setenv("AGGREGATION_CRON", "not a cron")
	if _, err := Load(); err == nil {
		t.Error("Expected invalid cron expression to be rejected")
	}
}

func TestLoadAcceptsValidCron(t *testing.T) {
	t.Setenv("AGGREGATION_CRON", "*/5 * * * *")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AggregationCron != "*/5 * * * *" {
		t.Errorf("Cron expression lost: %q", cfg.AggregationCron)
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	content := []byte("hr_history_size: 40\nlookback_high_min: 30\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if profile.HRHistorySize != 40 {
		t.Errorf("Expected override 40, got %d", profile.HRHistorySize)
	}
	// Unspecified fields keep their defaults.
	if profile.ECGHistorySize != 200 {
		t.Errorf("Expected default 200, got %d", profile.ECGHistorySize)
	}
	if profile.LookbackHighMin != 30 {
		t.Errorf("Expected override 30, got %d", profile.LookbackHighMin)
	}
}

func TestLoadProfileRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	os.WriteFile(broken, []byte("hr_history_size: [not an int"), 0o644)
	if _, err := LoadProfile(broken); err == nil {
		t.Error("Expected parse error")
	}

	negative := filepath.Join(dir, "negative.yaml")
	os.WriteFile(negative, []byte("hr_history_size: -5\n"), 0o644)
	if _, err := LoadProfile(negative); err == nil {
		t.Error("Expected validation error for non-positive history size")
	}

	if _, err := LoadProfile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLookbackByRiskLevel(t *testing.T) {
	p := DefaultProfile()

	tests := []struct {
		risk string
		want time.Duration
	}{
		{"high", 15 * time.Minute},
		{"moderate", 10 * time.Minute},
		{"low", 5 * time.Minute},
		{"unknown", 5 * time.Minute},
		{"", 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := p.Lookback(tt.risk); got != tt.want {
			t.Errorf("Lookback(%q) = %s, want %s", tt.risk, got, tt.want)
		}
	}
}
