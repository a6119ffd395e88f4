package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	requestDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	requestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_count_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	activeRequestsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_active",
			Help: "Number of active HTTP requests",
		},
	)

	// Error metrics
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "error_total",
			Help: "Total number of errors by type and component",
		},
		[]string{"type", "component"},
	)

	// Provisioning metrics
	provisionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_provisions_total",
			Help: "Total number of provisioning runs by outcome",
		},
		[]string{"outcome"},
	)

	provisionDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_provision_duration_seconds",
			Help:    "Duration of provisioning runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	stepDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_provision_step_duration_seconds",
			Help:    "Duration of individual provisioning steps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"step", "status"},
	)

	activeProvisionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandbox_provisions_active",
			Help: "Number of provisioning runs in progress",
		},
	)

	agentOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_agent_outcomes_total",
			Help: "Telemetry agent bootstrap outcomes by strategy and state",
		},
		[]string{"strategy", "state"},
	)

	// Relay metrics
	relayCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_relay_calls_total",
			Help: "Total number of calls relayed to sandboxed applications",
		},
		[]string{"status"},
	)

	relayDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_relay_duration_seconds",
			Help:    "Duration of relayed calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	hostMemoryGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provisioner_host_memory_used_percent",
			Help: "Memory in use on the provisioner host",
		},
	)

	hostCPUGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provisioner_host_cpu_used_percent",
			Help: "CPU in use on the provisioner host",
		},
	)
)

// MetricsHandler returns an http.Handler that serves the metrics endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware wraps an http.Handler and records metrics about the request
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		activeRequestsGauge.Inc()
		defer activeRequestsGauge.Dec()

		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": fmt.Sprintf("%d", status),
		}

		requestDurationHistogram.With(labels).Observe(time.Since(start).Seconds())
		requestCounter.With(labels).Inc()
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// RecordProvision records the end of a provisioning run. outcome is "success"
// or the error kind.
func RecordProvision(outcome string, duration time.Duration) {
	provisionCounter.WithLabelValues(outcome).Inc()
	provisionDurationHistogram.WithLabelValues(outcome).Observe(duration.Seconds())
	recordProvisionOTel(outcome)
}

// TrackProvision marks a run as active and returns the function ending it.
func TrackProvision() func() {
	activeProvisionsGauge.Inc()
	return activeProvisionsGauge.Dec
}

func RecordStep(step string, status string, duration time.Duration) {
	stepDurationHistogram.WithLabelValues(step, status).Observe(duration.Seconds())
}

// RecordAgentOutcome counts a bootstrap outcome. strategy is empty when no
// start strategy ran.
func RecordAgentOutcome(strategy string, state string) {
	if strategy == "" {
		strategy = "none"
	}
	agentOutcomeCounter.WithLabelValues(strategy, state).Inc()
}

func RecordRelay(status string, duration time.Duration) {
	relayCounter.WithLabelValues(status).Inc()
	relayDurationHistogram.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordError records an error occurrence by type and component
func RecordError(errorType string, component string) {
	errorCounter.WithLabelValues(errorType, component).Inc()
}

func RecordHostUsage(memoryPercent float64, cpuPercent float64) {
	hostMemoryGauge.Set(memoryPercent)
	hostCPUGauge.Set(cpuPercent)
}
