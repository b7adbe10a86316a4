package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for route processing.
type Metrics struct {
	Registry          *prometheus.Registry
	RoutesTotal       *prometheus.CounterVec
	RouteDuration     prometheus.Histogram
	ScreenshotsTotal  *prometheus.CounterVec
	InjectionsTotal   prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	ProcessingPercent prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	routes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routedoc_routes_processed_total",
			Help: "Routes processed, by outcome.",
		},
		[]string{"outcome"},
	)
	routeDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routedoc_route_duration_seconds",
			Help:    "Time spent processing one route, including settle waits.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		},
	)
	screenshots := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routedoc_screenshots_total",
			Help: "Full-page captures, by outcome.",
		},
		[]string{"outcome"},
	)
	injections := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routedoc_agent_injections_total",
			Help: "Page agent injections after a failed delivery.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routedoc_errors_total",
			Help: "Route processing errors by type.",
		},
		[]string{"error_type"},
	)
	progress := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routedoc_processing_progress_percent",
			Help: "Progress of the current run.",
		},
	)

	registry.MustRegister(routes, routeDuration, screenshots, injections, errorsTotal, progress)

	return &Metrics{
		Registry:          registry,
		RoutesTotal:       routes,
		RouteDuration:     routeDuration,
		ScreenshotsTotal:  screenshots,
		InjectionsTotal:   injections,
		ErrorsTotal:       errorsTotal,
		ProcessingPercent: progress,
	}
}

// IncRoute counts a processed route.
func (m *Metrics) IncRoute(outcome string) {
	if m == nil {
		return
	}
	m.RoutesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRoute records the duration of one route.
func (m *Metrics) ObserveRoute(d time.Duration) {
	if m == nil {
		return
	}
	m.RouteDuration.Observe(d.Seconds())
}

// IncScreenshot counts a capture attempt.
func (m *Metrics) IncScreenshot(outcome string) {
	if m == nil {
		return
	}
	m.ScreenshotsTotal.WithLabelValues(outcome).Inc()
}

// IncInjection counts an agent injection.
func (m *Metrics) IncInjection() {
	if m == nil {
		return
	}
	m.InjectionsTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetProgress records the run's progress percentage.
func (m *Metrics) SetProgress(percent int) {
	if m == nil {
		return
	}
	m.ProcessingPercent.Set(float64(percent))
}
