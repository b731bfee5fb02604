package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	reconcileRunsTotal  *prometheus.CounterVec
	lifecycleOpsTotal   *prometheus.CounterVec
	renderFailuresTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "excomp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "excomp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "excomp",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	reconcileRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "excomp",
			Subsystem: "catalogue",
			Name:      "reconcile_runs_total",
			Help:      "Total document catalogue reconciliations by outcome.",
		},
		[]string{"service", "created"},
	)
	lifecycleOpsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "excomp",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Total document lifecycle operations by result.",
		},
		[]string{"service", "operation", "result"},
	)
	renderFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "excomp",
			Subsystem: "lifecycle",
			Name:      "render_failures_total",
			Help:      "Total failed document render attempts.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		reconcileRunsTotal,
		lifecycleOpsTotal,
		renderFailuresTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		reconcileRunsTotal:  reconcileRunsTotal,
		lifecycleOpsTotal:   lifecycleOpsTotal,
		renderFailuresTotal: renderFailuresTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses shipment-scoped paths so metric cardinality stays
// bounded by route shape, not by shipment count.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/shipments/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/shipments/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return "/v1/shipments/{shipment_id}"
	}
	return "/v1/shipments/{shipment_id}/" + parts[1]
}

func (m *HTTPServerMetrics) RecordReconcile(service string, created bool) {
	m.reconcileRunsTotal.WithLabelValues(service, strconv.FormatBool(created)).Inc()
}

func (m *HTTPServerMetrics) RecordLifecycleOp(service, operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.lifecycleOpsTotal.WithLabelValues(service, operation, result).Inc()
}

func (m *HTTPServerMetrics) RecordRenderFailure(service string) {
	m.renderFailuresTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
