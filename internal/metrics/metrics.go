// Package metrics defines the Prometheus instruments for the guidance pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guidance"

// Metrics groups the pipeline's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// RequestsTotal counts handled guidance requests.
	// Labels: status (success, error)
	RequestsTotal *prometheus.CounterVec

	// StageDurationSeconds measures each pipeline stage.
	// Labels: stage (rewrite, embed, retrieve, generate, parse)
	StageDurationSeconds *prometheus.HistogramVec

	// ErrorsTotal counts failures by kind.
	// Labels: kind (config, upstream, store, parse, schema, request)
	ErrorsTotal *prometheus.CounterVec

	// DocumentsMatched records how many documents each search returned.
	DocumentsMatched prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in main
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of guidance requests by status",
			},
			[]string{"status"},
		),
		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each guidance pipeline stage in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total guidance failures by kind",
			},
			[]string{"kind"},
		),
		DocumentsMatched: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "documents_matched",
				Help:      "Number of documents returned by each similarity search",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 10},
			},
		),
	}
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(status).Inc()
}

// RecordError counts a failure of the given kind.
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordMatches records the size of a similarity-search result.
func (m *Metrics) RecordMatches(n int) {
	if m == nil {
		return
	}
	m.DocumentsMatched.Observe(float64(n))
}
