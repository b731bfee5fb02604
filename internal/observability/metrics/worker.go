package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	reconcileTotal    *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	reconcileInFlight prometheus.Gauge
	runsWithCreation  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	reconcileTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "excomp",
			Subsystem: "worker",
			Name:      "reconcile_total",
			Help:      "Total shipment reconciliations by status.",
		},
		[]string{"service", "status"},
	)
	reconcileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "excomp",
			Subsystem: "worker",
			Name:      "reconcile_duration_seconds",
			Help:      "Reconciliation duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	reconcileInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "excomp",
			Subsystem: "worker",
			Name:      "reconcile_in_flight",
			Help:      "Number of in-flight reconciliations.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	runsWithCreation := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "excomp",
			Subsystem: "worker",
			Name:      "reconcile_runs_with_creation_total",
			Help:      "Total reconciliations that created at least one document record.",
		},
		[]string{"service"},
	)

	registry.MustRegister(reconcileTotal, reconcileDuration, reconcileInFlight, runsWithCreation)

	return &WorkerMetrics{
		registry:          registry,
		reconcileTotal:    reconcileTotal,
		reconcileDuration: reconcileDuration,
		reconcileInFlight: reconcileInFlight,
		runsWithCreation:  runsWithCreation,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReconcile() {
	m.reconcileInFlight.Inc()
}

func (m *WorkerMetrics) FinishReconcile(service string, duration time.Duration, created bool, err error) {
	m.reconcileInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.reconcileTotal.WithLabelValues(service, status).Inc()
	m.reconcileDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if created {
		m.runsWithCreation.WithLabelValues(service).Inc()
	}
}
