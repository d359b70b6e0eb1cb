package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Port        string
	DatabaseURL string // MySQL DSN (mysql://...) or SQLite file DSN (sqlite://path)
	MongoURI    string // sample + aggregate store
	RedisURL    string // optional cross-instance fanout bridge; empty disables it

	// Risk classifier artifacts (fatal at startup when missing)
	ModelPath  string
	ScalerPath string

	// Narrative generation service (OpenAI-compatible)
	NarrativeBaseURL string
	NarrativeAPIKey  string
	NarrativeModel   string
	NarrativeTimeout time.Duration

	// Window aggregation cadence. Cron, when set, overrides the interval.
	AggregationInterval time.Duration
	AggregationCron     string

	// Ingestion rate limiting, samples per second per device
	DeviceRateLimit float64
	DeviceRateBurst int

	Profile Profile
}

// Profile tunes the fanout history sizes and narrative lookback table.
// Loaded from an optional YAML file so deployments can adjust them without
// a rebuild.
type Profile struct {
	HRHistorySize        int `yaml:"hr_history_size"`
	SpO2HistorySize      int `yaml:"spo2_history_size"`
	ECGHistorySize       int `yaml:"ecg_history_size"`
	AggregateHistorySize int `yaml:"aggregate_history_size"`

	// Narrative lookback minutes per risk level
	LookbackHighMin     int `yaml:"lookback_high_min"`
	LookbackModerateMin int `yaml:"lookback_moderate_min"`
	LookbackDefaultMin  int `yaml:"lookback_default_min"`
}

// DefaultProfile mirrors the dashboard contract: 20 heart-rate points,
// 20 SpO2 points, 200 raw ECG amplitudes, 100 recent aggregates.
func DefaultProfile() Profile {
	return Profile{
		HRHistorySize:        20,
		SpO2HistorySize:      20,
		ECGHistorySize:       200,
		AggregateHistorySize: 100,
		LookbackHighMin:      15,
		LookbackModerateMin:  10,
		LookbackDefaultMin:   5,
	}
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3001"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoURI:    getEnv("MONGODB_URI", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		ModelPath:  getEnv("RISK_MODEL_PATH", "artifacts/risk_model.json"),
		ScalerPath: getEnv("RISK_SCALER_PATH", "artifacts/feature_scaler.json"),

		NarrativeBaseURL: getEnv("NARRATIVE_BASE_URL", "https://api.openai.com/v1"),
		NarrativeAPIKey:  getEnv("NARRATIVE_API_KEY", ""),
		NarrativeModel:   getEnv("NARRATIVE_MODEL", "gpt-4o"),
		NarrativeTimeout: getDurationEnv("NARRATIVE_TIMEOUT", 20*time.Second),

		AggregationInterval: getDurationEnv("AGGREGATION_INTERVAL", 5*time.Minute),
		AggregationCron:     getEnv("AGGREGATION_CRON", ""),

		DeviceRateLimit: getFloatEnv("DEVICE_RATE_LIMIT", 2),
		DeviceRateBurst: getIntEnv("DEVICE_RATE_BURST", 10),

		Profile: DefaultProfile(),
	}

	if cfg.AggregationCron != "" {
		if _, err := cron.ParseStandard(cfg.AggregationCron); err != nil {
			return nil, fmt.Errorf("invalid AGGREGATION_CRON %q: %w", cfg.AggregationCron, err)
		}
	}
	if cfg.AggregationInterval < time.Minute {
		return nil, fmt.Errorf("AGGREGATION_INTERVAL must be at least 1m, got %s", cfg.AggregationInterval)
	}

	if path := getEnv("MONITORING_PROFILE", ""); path != "" {
		profile, err := LoadProfile(path)
		if err != nil {
			return nil, err
		}
		cfg.Profile = *profile
	}

	return cfg, nil
}

// LoadProfile reads a monitoring profile from a YAML file. Zero-valued
// fields fall back to the defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitoring profile: %w", err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse monitoring profile: %w", err)
	}

	if profile.HRHistorySize <= 0 || profile.ECGHistorySize <= 0 {
		return nil, fmt.Errorf("monitoring profile history sizes must be positive")
	}
	return &profile, nil
}

// Lookback returns the narrative trend window for a risk level.
func (p Profile) Lookback(riskLevel string) time.Duration {
	switch riskLevel {
	case "high":
		return time.Duration(p.LookbackHighMin) * time.Minute
	case "moderate":
		return time.Duration(p.LookbackModerateMin) * time.Minute
	default:
		return time.Duration(p.LookbackDefaultMin) * time.Minute
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
