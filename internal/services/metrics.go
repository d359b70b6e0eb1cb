package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the pipeline
type Metrics struct {
	// Ingestion metrics
	SamplesIngested prometheus.Counter
	SamplesRejected *prometheus.CounterVec

	// Fanout metrics
	FanoutMessages *prometheus.CounterVec

	// Aggregation metrics
	AggregationCycles   *prometheus.CounterVec // outcome: "persisted", "skipped", "failed"
	CycleDuration       prometheus.Histogram
	NarrativeFailures   prometheus.Counter
	ClassifierFailures  prometheus.Counter
}

// InitMetrics initializes the Prometheus metrics
func InitMetrics(connManager *ConnectionManager) *Metrics {
	metrics := &Metrics{
		SamplesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitalstream_samples_ingested_total",
			Help: "Total number of accepted vital samples",
		}),

		SamplesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalstream_samples_rejected_total",
			Help: "Total number of rejected ingestion requests by reason",
		}, []string{"reason"}),

		FanoutMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalstream_fanout_messages_total",
			Help: "Total number of fanout messages by delivery outcome",
		}, []string{"outcome"}),

		AggregationCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalstream_aggregation_cycles_total",
			Help: "Total number of per-patient aggregation cycles by outcome",
		}, []string{"outcome"}),

		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitalstream_aggregation_cycle_duration_seconds",
			Help:    "Per-patient aggregation cycle latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30}, // narrative call dominates the tail
		}),

		NarrativeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitalstream_narrative_failures_total",
			Help: "Total number of failed narrative generation calls",
		}),

		ClassifierFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitalstream_classifier_failures_total",
			Help: "Total number of classification errors (deployment defects)",
		}),
	}

	// Subscriber gauge sourced live from the connection manager
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vitalstream_subscriber_connections_current",
			Help: "Current number of active subscriber WebSocket connections",
		},
		func() float64 {
			if connManager != nil {
				return float64(connManager.Count())
			}
			return 0
		},
	))

	return metrics
}
