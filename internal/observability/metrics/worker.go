package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ClassificationMetrics struct {
	registry *prometheus.Registry

	batchTotal       *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
	classifyInFlight prometheus.Gauge
	captureLag       *prometheus.HistogramVec
}

func NewClassificationMetrics(service string) *ClassificationMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhub",
			Subsystem: "classifier",
			Name:      "capture_batches_total",
			Help:      "Total consumed bookmark capture batches by status.",
		},
		[]string{"service", "status"},
	)
	batchSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "markhub",
			Subsystem: "classifier",
			Name:      "capture_batch_size",
			Help:      "Distribution of bookmarks per consumed capture batch.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50, 100},
		},
		[]string{"service"},
	)
	classifyInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "markhub",
			Subsystem: "classifier",
			Name:      "batches_in_flight",
			Help:      "Number of capture batches being enqueued.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	captureLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "markhub",
			Subsystem: "classifier",
			Name:      "capture_lag_seconds",
			Help:      "Delay between bookmark capture and queue consumption.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(batchTotal, batchSize, classifyInFlight, captureLag)

	return &ClassificationMetrics{
		registry:         registry,
		batchTotal:       batchTotal,
		batchSize:        batchSize,
		classifyInFlight: classifyInFlight,
		captureLag:       captureLag,
	}
}

func (m *ClassificationMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClassificationMetrics) StartBatch() {
	m.classifyInFlight.Inc()
}

func (m *ClassificationMetrics) FinishBatch(service string, size int, err error) {
	m.classifyInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.batchTotal.WithLabelValues(service, status).Inc()
	if size > 0 {
		m.batchSize.WithLabelValues(service).Observe(float64(size))
	}
}

func (m *ClassificationMetrics) ObserveCaptureLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.captureLag.WithLabelValues(service).Observe(lag.Seconds())
}
