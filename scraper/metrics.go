package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the downloader.
type Metrics struct {
	Registry      *prometheus.Registry
	PhaseDuration *prometheus.HistogramVec
	RowsTotal     *prometheus.CounterVec
	OverlayTotal  *prometheus.CounterVec
	AuthTotal     *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	phaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topstocks_phase_duration_seconds",
			Help:    "Wall time of each run phase.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topstocks_rows_total",
			Help: "Table rows seen, by validation outcome.",
		},
		[]string{"outcome"},
	)
	overlay := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topstocks_overlay_total",
			Help: "Onboarding overlay checks, by outcome.",
		},
		[]string{"outcome"},
	)
	auth := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topstocks_auth_total",
			Help: "Sessions by authentication mode.",
		},
		[]string{"mode"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topstocks_errors_total",
			Help: "Fatal extraction errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(phaseDuration, rows, overlay, auth, errorsTotal)

	return &Metrics{
		Registry:      registry,
		PhaseDuration: phaseDuration,
		RowsTotal:     rows,
		OverlayTotal:  overlay,
		AuthTotal:     auth,
		ErrorsTotal:   errorsTotal,
	}
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddRows adds accepted and rejected row counts.
func (m *Metrics) AddRows(accepted, rejected int) {
	if m == nil {
		return
	}
	m.RowsTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.RowsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// IncOverlay counts an overlay check outcome.
func (m *Metrics) IncOverlay(outcome string) {
	if m == nil {
		return
	}
	m.OverlayTotal.WithLabelValues(outcome).Inc()
}

// IncAuth counts a session by authentication mode.
func (m *Metrics) IncAuth(mode string) {
	if m == nil {
		return
	}
	m.AuthTotal.WithLabelValues(mode).Inc()
}

// IncError increments the errors counter for the error's type label.
func (m *Metrics) IncError(err error) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorTypeLabel(err)).Inc()
}
