package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithCycle returns a logger with aggregation cycle context fields attached.
// Use this for all logging within one patient's window cycle.
func WithCycle(patientID string, windowStart, windowEnd time.Time) *slog.Logger {
	return slog.With(
		"patient_id", patientID,
		"window_start", windowStart.Format(time.RFC3339),
		"window_end", windowEnd.Format(time.RFC3339),
	)
}

// WithConnection returns a logger scoped to a subscriber connection.
func WithConnection(connID, patientID string) *slog.Logger {
	return slog.With(
		"conn_id", connID,
		"patient_id", patientID,
	)
}
