package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors for one export run.
// All methods are safe on a nil receiver, which disables collection.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	PagesTotal       *prometheus.CounterVec
	ItemsTotal       *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	DiagnosticsTotal prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwarchive_requests_total",
			Help: "HTTP requests issued, by export stage.",
		},
		[]string{"stage"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dwarchive_request_duration_seconds",
			Help:    "Latency of page and image requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwarchive_pages_extracted_total",
			Help: "Pages successfully fetched and extracted, by export stage.",
		},
		[]string{"stage"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwarchive_items_archived_total",
			Help: "Records and files written to the archive, by kind.",
		},
		[]string{"kind"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwarchive_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)
	diagnostics := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dwarchive_diagnostic_files_total",
			Help: "Diagnostic page dumps written for pages that failed to parse.",
		},
	)

	registry.MustRegister(requests, requestDuration, pages, items, errorsTotal, diagnostics)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		PagesTotal:       pages,
		ItemsTotal:       items,
		ErrorsTotal:      errorsTotal,
		DiagnosticsTotal: diagnostics,
	}
}

// IncRequest counts one request for a stage
func (m *Metrics) IncRequest(stage string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(stage).Inc()
}

// ObserveDuration records a request duration
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPage counts one extracted page for a stage
func (m *Metrics) IncPage(stage string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(stage).Inc()
}

// AddItems counts n archived items of a kind
func (m *Metrics) AddItems(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsTotal.WithLabelValues(kind).Add(float64(n))
}

// IncError increments the errors counter for a type label
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncDiagnostic counts one written diagnostic file
func (m *Metrics) IncDiagnostic() {
	if m == nil {
		return
	}
	m.DiagnosticsTotal.Inc()
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
