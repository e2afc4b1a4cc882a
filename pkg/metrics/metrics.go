// Package metrics exports Prometheus metrics for verification runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/qube-forensics/sealcheck/pkg/model"
)

// Registry holds all sealcheck metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	VerificationsTotal   *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	CanonicalBytes       prometheus.Histogram
	ErrorsTotal          *prometheus.CounterVec
	RecordsRead          prometheus.Counter
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		VerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealcheck_verifications_total",
				Help: "Completed record verifications by status",
			},
			[]string{"status", "algorithm"},
		),
		VerificationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sealcheck_verification_duration_seconds",
				Help:    "Time to canonicalize, hash and compare one record",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
		),
		CanonicalBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sealcheck_canonical_bytes",
				Help:    "Size of the canonical form hashed per record",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealcheck_errors_total",
				Help: "Verifications that could not complete, by error class",
			},
			[]string{"code"},
		),
		RecordsRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sealcheck_records_read_total",
				Help: "Records read from NDJSON input",
			},
		),
	}
}

// Gatherer exposes the underlying registry for export.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordVerification records a completed verification.
func (r *Registry) RecordVerification(status model.Status, algorithm string, duration time.Duration, canonicalBytes int) {
	r.VerificationsTotal.WithLabelValues(string(status), algorithm).Inc()
	r.VerificationDuration.Observe(duration.Seconds())
	if canonicalBytes > 0 {
		r.CanonicalBytes.Observe(float64(canonicalBytes))
	}
}

// RecordError records a verification that ended in a tooling fault.
func (r *Registry) RecordError(code string) {
	if code == "" {
		code = "unknown"
	}
	r.ErrorsTotal.WithLabelValues(code).Inc()
}

// WriteTextfile writes the current metrics in Prometheus text format to
// path, for pickup by a node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
