// Package metrics exposes Prometheus metrics for the edge engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics collects detection and lifecycle metrics on its own registry.
type EngineMetrics struct {
	registry *prometheus.Registry

	EdgesDetected        *prometheus.CounterVec
	EdgeCandidates       *prometheus.CounterVec
	DetectionRuns        *prometheus.CounterVec
	DetectionDuration    prometheus.Histogram
	LifecycleTransitions *prometheus.CounterVec
	LifecycleFailures    *prometheus.CounterVec
	StreamEvents         *prometheus.CounterVec
	AlertsSent           prometheus.Counter
	EdgesActive          *prometheus.GaugeVec
}

// New creates the metrics collector with every series registered.
func New() *EngineMetrics {
	registry := prometheus.NewRegistry()

	m := &EngineMetrics{
		registry: registry,

		EdgesDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omi_edges_detected_total",
				Help: "Edges upserted by the detection pipeline",
			},
			[]string{"sport", "signal_type"},
		),
		EdgeCandidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omi_edge_candidates_total",
				Help: "Raw candidates produced before aggregation",
			},
			[]string{"signal_type"},
		),
		DetectionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omi_detection_runs_total",
				Help: "Per-game detection runs by outcome",
			},
			[]string{"result"},
		),
		DetectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "omi_detection_duration_seconds",
				Help:    "Wall time of one full-game detection run",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),
		LifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omi_lifecycle_transitions_total",
				Help: "Edge status transitions applied by the lifecycle manager",
			},
			[]string{"to_status"},
		),
		LifecycleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omi_lifecycle_failures_total",
				Help: "Per-edge lifecycle evaluation failures",
			},
			[]string{"kind"},
		),
		StreamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omi_stream_events_total",
				Help: "Change events consumed from the odds stream",
			},
			[]string{"table", "event_type"},
		),
		AlertsSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "omi_alerts_sent_total",
				Help: "Alerts delivered to the notification channel",
			},
		),
		EdgesActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "omi_edges_active",
				Help: "Current edge rows per lifecycle status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.EdgesDetected,
		m.EdgeCandidates,
		m.DetectionRuns,
		m.DetectionDuration,
		m.LifecycleTransitions,
		m.LifecycleFailures,
		m.StreamEvents,
		m.AlertsSent,
		m.EdgesActive,
	)

	return m
}

// Registry returns the prometheus registry for the /metrics handler.
func (m *EngineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordDetection records one full-game detection run.
func (m *EngineMetrics) RecordDetection(result string, durationSec float64) {
	m.DetectionRuns.WithLabelValues(result).Inc()
	if durationSec > 0 {
		m.DetectionDuration.Observe(durationSec)
	}
}

// RecordEdge records one upserted edge.
func (m *EngineMetrics) RecordEdge(sport, signalType string) {
	m.EdgesDetected.WithLabelValues(sport, signalType).Inc()
}

// RecordTransition records one lifecycle status change.
func (m *EngineMetrics) RecordTransition(toStatus string) {
	m.LifecycleTransitions.WithLabelValues(toStatus).Inc()
}

// RecordLifecycleRun folds one update pass into the lifecycle series.
func (m *EngineMetrics) RecordLifecycleRun(faded, expired int, failureKinds []string) {
	m.LifecycleTransitions.WithLabelValues("fading").Add(float64(faded))
	m.LifecycleTransitions.WithLabelValues("expired").Add(float64(expired))
	for _, kind := range failureKinds {
		m.LifecycleFailures.WithLabelValues(kind).Inc()
	}
}

// UpdateStatusCounts refreshes the per-status gauge from store counts.
func (m *EngineMetrics) UpdateStatusCounts(counts map[string]int64) {
	for status, n := range counts {
		m.EdgesActive.WithLabelValues(status).Set(float64(n))
	}
}
