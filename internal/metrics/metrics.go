// Package metrics instruments the page pipeline with Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcome labels
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// PipelineMetrics holds the collectors of one extractor process on a private registry
type PipelineMetrics struct {
	registry *prometheus.Registry

	pagesTotal   *prometheus.CounterVec
	pageDuration prometheus.Histogram
	entities     *prometheus.CounterVec
	inFlight     prometheus.Gauge
}

func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	pagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plan",
			Name:      "pages_processed_total",
			Help:      "Total processed pages by status.",
		},
		[]string{"status"},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "plan",
			Name:      "page_duration_seconds",
			Help:      "Per-page extraction duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	entities := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plan",
			Name:      "entities_extracted_total",
			Help:      "Total extracted entities by kind, before the cross-page merge.",
		},
		[]string{"kind"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plan",
			Name:      "pages_in_flight",
			Help:      "Number of pages being processed.",
		},
	)

	registry.MustRegister(pagesTotal, pageDuration, entities, inFlight)

	return &PipelineMetrics{
		registry:     registry,
		pagesTotal:   pagesTotal,
		pageDuration: pageDuration,
		entities:     entities,
		inFlight:     inFlight,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) StartPage() {
	m.inFlight.Inc()
}

func (m *PipelineMetrics) FinishPage(duration time.Duration, err error) {
	m.inFlight.Dec()

	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.pagesTotal.WithLabelValues(status).Inc()
	m.pageDuration.Observe(duration.Seconds())
}

func (m *PipelineMetrics) AddEntities(kind string, n int) {
	if n <= 0 {
		return
	}
	m.entities.WithLabelValues(kind).Add(float64(n))
}
