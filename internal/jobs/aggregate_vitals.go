package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitalstream/internal/config"
	"vitalstream/internal/features"
	"vitalstream/internal/logging"
	"vitalstream/internal/models"
	"vitalstream/internal/narrative"
	"vitalstream/internal/services"
	"vitalstream/internal/store"
)

// RiskClassifier scores one feature vector into a risk level and an optional
// confidence.
type RiskClassifier interface {
	Classify(vector []float64) (string, *float64, error)
}

// Summarizer produces a short clinical narrative from a trend description and
// a patient bio.
type Summarizer interface {
	Summarize(ctx context.Context, trend, bio string) (string, error)
}

// AggregateVitalsJob computes one aggregation window per active patient:
// average vitals, derived features, risk classification, and narrative
// summary, persisted as a single aggregate record.
type AggregateVitalsJob struct {
	patients   store.PatientStore
	samples    store.SampleStore
	aggregates store.AggregateStore
	extractor  *features.Extractor
	classifier RiskClassifier
	summarizer Summarizer
	aggCache   *services.AggregateCache
	profile    config.Profile
	interval   time.Duration
	metrics    *services.Metrics

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// NewAggregateVitalsJob wires the aggregation pipeline. summarizer may be nil
// when no narrative backend is configured; summaries are then left empty.
func NewAggregateVitalsJob(
	patients store.PatientStore,
	samples store.SampleStore,
	aggregates store.AggregateStore,
	extractor *features.Extractor,
	classifier RiskClassifier,
	summarizer Summarizer,
	aggCache *services.AggregateCache,
	profile config.Profile,
	interval time.Duration,
	metrics *services.Metrics,
) *AggregateVitalsJob {
	return &AggregateVitalsJob{
		patients:   patients,
		samples:    samples,
		aggregates: aggregates,
		extractor:  extractor,
		classifier: classifier,
		summarizer: summarizer,
		aggCache:   aggCache,
		profile:    profile,
		interval:   interval,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (j *AggregateVitalsJob) Name() string {
	return "aggregate_vitals"
}

// Run executes one aggregation cycle. The window [end-interval, end) is fixed
// once at cycle start so every patient is scored over the same bounds, then
// patients are processed concurrently. Per-patient failures are isolated: one
// bad cycle never aborts the rest.
func (j *AggregateVitalsJob) Run(ctx context.Context) error {
	end := j.now().UTC()
	start := end.Add(-j.interval)

	patients, err := j.patients.ListPatients(ctx)
	if err != nil {
		return fmt.Errorf("failed to list patients: %w", err)
	}
	if len(patients) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, patient := range patients {
		wg.Add(1)
		go func(p models.Patient) {
			defer wg.Done()
			j.runPatientCycle(ctx, p, start, end)
		}(patient)
	}
	wg.Wait()

	return nil
}

func (j *AggregateVitalsJob) runPatientCycle(ctx context.Context, patient models.Patient, start, end time.Time) {
	logger := logging.WithCycle(patient.ID, start, end)
	cycleStart := time.Now()
	defer func() {
		if j.metrics != nil {
			j.metrics.CycleDuration.Observe(time.Since(cycleStart).Seconds())
		}
		if r := recover(); r != nil {
			logger.Error("aggregation cycle panicked", "panic", r)
			j.countCycle("failed")
		}
	}()

	samples, err := j.samples.ListSamples(ctx, patient.ID, start, end)
	if err != nil {
		logger.Error("failed to read sample window", "error", err)
		j.countCycle("failed")
		return
	}
	if len(samples) == 0 {
		logger.Debug("no samples in window, skipping cycle")
		j.countCycle("skipped")
		return
	}

	feats, err := j.extractor.Extract(samples, patient)
	if err != nil {
		logger.Error("feature extraction failed", "error", err)
		j.countCycle("failed")
		return
	}

	riskLevel, confidence, err := j.classifier.Classify(feats.Vector)
	if err != nil {
		// A scoring failure here means the loaded artifacts disagree with
		// the extractor output. Loud by intent: this needs operator action.
		logger.Error("risk classification failed, cycle aborted", "error", err)
		if j.metrics != nil {
			j.metrics.ClassifierFailures.Inc()
		}
		j.countCycle("failed")
		return
	}

	summary := j.generateSummary(ctx, logger, patient, riskLevel, end)

	// Do not persist a partial record if shutdown started mid-cycle.
	if ctx.Err() != nil {
		logger.Warn("cycle cancelled before persist")
		j.countCycle("failed")
		return
	}

	agg := &models.AggregateWindow{
		ID:             uuid.New().String(),
		PatientID:      patient.ID,
		StartTime:      start,
		EndTime:        end,
		AvgHeartRate:   feats.Averages.HeartRate,
		AvgSpO2:        feats.Averages.SpO2,
		AvgTemperature: feats.Averages.Temperature,
		AvgResp:        feats.Averages.Resp,
		AvgSystolic:    feats.Averages.Systolic,
		AvgDiastolic:   feats.Averages.Diastolic,
		AvgAccelX:      feats.Averages.AccelX,
		AvgAccelY:      feats.Averages.AccelY,
		AvgAccelZ:      feats.Averages.AccelZ,
		RiskLevel:      riskLevel,
		Confidence:     confidence,
		Summary:        summary,
		CreatedAt:      j.now().UTC(),
	}

	if err := j.aggregates.InsertAggregate(ctx, agg); err != nil {
		logger.Error("failed to persist aggregate", "error", err)
		j.countCycle("failed")
		return
	}

	if j.aggCache != nil {
		j.aggCache.Set(patient.ID, agg)
	}

	logger.Info("aggregate persisted",
		"risk_level", riskLevel,
		"samples", len(samples),
		"has_summary", summary != "")
	j.countCycle("persisted")
}

// generateSummary builds the narrative for the cycle. The lookback depends on
// the risk level: higher risk reads further back. Narrative failures degrade
// to an empty summary; the aggregate still persists.
func (j *AggregateVitalsJob) generateSummary(ctx context.Context, logger *slog.Logger, patient models.Patient, riskLevel string, end time.Time) string {
	if j.summarizer == nil {
		return ""
	}

	lookback := j.profile.Lookback(riskLevel)
	lookSamples, err := j.samples.ListSamples(ctx, patient.ID, end.Add(-lookback), end)
	if err != nil {
		logger.Warn("failed to read narrative lookback", "error", err)
		if j.metrics != nil {
			j.metrics.NarrativeFailures.Inc()
		}
		return ""
	}

	trend, ok := narrative.BuildTrend(lookSamples, lookback)
	if !ok {
		logger.Debug("not enough samples for a trend narrative")
		return ""
	}

	summary, err := j.summarizer.Summarize(ctx, trend, narrative.Bio(patient))
	if err != nil {
		logger.Warn("narrative generation failed", "error", err)
		if j.metrics != nil {
			j.metrics.NarrativeFailures.Inc()
		}
		return ""
	}
	return summary
}

func (j *AggregateVitalsJob) countCycle(outcome string) {
	if j.metrics != nil {
		j.metrics.AggregationCycles.WithLabelValues(outcome).Inc()
	}
}
