// Package metrics provides Prometheus metrics for the face-match pipeline.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "facewatch"

// Metrics holds all collectors. Every method is safe on a nil receiver so
// components can run without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	Scans              *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	Extractions        *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	CandidatesSkipped  *prometheus.CounterVec
	Confirmations      *prometheus.CounterVec
	Alerts             *prometheus.CounterVec
	WorkerJobs         *prometheus.CounterVec
	WorkerQueueDepth   prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all collectors on the given registry.
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan requests by outcome (matched, no_match, no_face, empty, error).",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "End-to-end duration of scan cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Embedding extractions by mode and result.",
		}, []string{"mode", "result"}),
		ExtractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of embedding extractions including detector fallbacks.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"mode"}),
		CandidatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_skipped_total",
			Help:      "Candidates left out of matching by reason.",
		}, []string{"reason"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation decisions (armed, fire, suppressed).",
		}, []string{"decision"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert dispatches by kind and result.",
		}, []string{"kind", "result"}),
		WorkerJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_total",
			Help:      "Embedding generation jobs by result (ok, degraded, failed, rejected).",
		}, []string{"result"}),
		WorkerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_queue_depth",
			Help:      "Embedding jobs waiting in the queue.",
		}),
	}

	collectors := []prometheus.Collector{
		m.Scans, m.ScanDuration, m.Extractions, m.ExtractionDuration,
		m.CandidatesSkipped, m.Confirmations, m.Alerts, m.WorkerJobs, m.WorkerQueueDepth,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ObserveScan records one scan outcome and its duration.
func (m *Metrics) ObserveScan(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(outcome).Inc()
	m.ScanDuration.Observe(d.Seconds())
}

// ObserveExtraction records one extraction attempt.
func (m *Metrics) ObserveExtraction(mode, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(mode, result).Inc()
	m.ExtractionDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// IncSkipped counts a candidate left out of matching.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.CandidatesSkipped.WithLabelValues(reason).Inc()
}

// IncConfirmation counts a confirmer decision.
func (m *Metrics) IncConfirmation(decision string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(decision).Inc()
}

// IncAlert counts a dispatched alert.
func (m *Metrics) IncAlert(kind, result string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(kind, result).Inc()
}

// IncWorkerJob counts a finished or rejected embedding job.
func (m *Metrics) IncWorkerJob(result string) {
	if m == nil {
		return
	}
	m.WorkerJobs.WithLabelValues(result).Inc()
}

// SetQueueDepth updates the pending job gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.WorkerQueueDepth.Set(float64(n))
}
