package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pid"

// PipelineMetrics records upload and extraction outcomes. It satisfies the
// pipeline observer port.
type PipelineMetrics struct {
	service string

	uploadsTotal       *prometheus.CounterVec
	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	assetsExtracted    *prometheus.HistogramVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "uploads_total",
			Help:      "Diagram uploads by outcome.",
		},
		[]string{"service", "status"},
	)
	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "extractions_total",
			Help:      "Asset extractions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "extraction_duration_seconds",
			Help:      "Extraction duration including the vision call.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180},
		},
		[]string{"service", "outcome"},
	)
	assetsExtracted := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "assets_per_extraction",
			Help:      "Assets persisted per completed extraction.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		},
		[]string{"service"},
	)

	registerer.MustRegister(uploadsTotal, extractionsTotal, extractionDuration, assetsExtracted)

	return &PipelineMetrics{
		service:            service,
		uploadsTotal:       uploadsTotal,
		extractionsTotal:   extractionsTotal,
		extractionDuration: extractionDuration,
		assetsExtracted:    assetsExtracted,
	}
}

func (m *PipelineMetrics) ObserveUpload(status string) {
	if status == "" {
		status = "unknown"
	}
	m.uploadsTotal.WithLabelValues(m.service, status).Inc()
}

func (m *PipelineMetrics) ObserveExtraction(outcome string, assets int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.extractionsTotal.WithLabelValues(m.service, outcome).Inc()
	m.extractionDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
	if outcome == "completed" {
		m.assetsExtracted.WithLabelValues(m.service).Observe(float64(assets))
	}
}
