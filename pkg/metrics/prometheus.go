package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	sightings  *prometheus.CounterVec
	detections *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	candidates prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		sightings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagsentry_sightings_ingested_total",
				Help: "Total number of sightings ingested, by source and inferred category",
			},
			[]string{"source", "category"},
		),
		detections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagsentry_detections_total",
				Help: "Total number of detection results emitted, by threat level",
			},
			[]string{"level"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagsentry_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tagsentry_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		candidates: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tagsentry_sweep_candidates",
				Help: "Candidate device count of the most recent detection sweep",
			},
		),
	}
}

// RecordSightingIngested counts one ingested sighting.
func (r *Recorder) RecordSightingIngested(source, category string) {
	r.sightings.WithLabelValues(source, category).Inc()
}

// RecordDetection counts one emitted detection result.
func (r *Recorder) RecordDetection(level string) {
	r.detections.WithLabelValues(level).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCandidates records the candidate count of the latest sweep.
func (r *Recorder) RecordCandidates(n int) {
	r.candidates.Set(float64(n))
}
