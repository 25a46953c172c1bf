package metrics

import (
	"strconv"
	"time"

	"github.com/havenworks/docvault/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storageMetrics is the Prometheus implementation of storage.Metrics.
//
// Collected series:
//   - request counts and latency by method and status
//   - retry counts by method
//   - circuit breaker state (0 closed, 1 open, 2 half-open)
//   - upload chunk outcomes
type storageMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	breakerState    prometheus.Gauge
	chunksTotal     *prometheus.CounterVec
}

// NewStorageMetrics creates a Prometheus-backed storage.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes the client to use its built-in no-op implementation.
func NewStorageMetrics() storage.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &storageMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_requests_total",
				Help: "Total number of remote API requests by method and HTTP status",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "docvault_request_duration_seconds",
				Help: "Duration of remote API requests in seconds",
				Buckets: []float64{
					0.05, // 50ms
					0.1,  // 100ms
					0.25, // 250ms
					0.5,  // 500ms
					1.0,  // 1s
					2.5,  // 2.5s
					5.0,  // 5s
					10.0, // 10s
					30.0, // 30s
				},
			},
			[]string{"method"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_retries_total",
				Help: "Total number of retried requests by method",
			},
			[]string{"method"},
		),
		breakerState: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "docvault_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
		),
		chunksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_upload_chunks_total",
				Help: "Total number of upload chunks by outcome (sent, completed, failed)",
			},
			[]string{"outcome"},
		),
	}
}

func (m *storageMetrics) ObserveRequest(method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, statusLabel(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *storageMetrics) IncRetry(method string) {
	m.retriesTotal.WithLabelValues(method).Inc()
}

func (m *storageMetrics) SetBreakerState(state string) {
	switch state {
	case "open":
		m.breakerState.Set(1)
	case "half-open":
		m.breakerState.Set(2)
	default:
		m.breakerState.Set(0)
	}
}

func (m *storageMetrics) IncChunk(outcome string) {
	m.chunksTotal.WithLabelValues(outcome).Inc()
}

// statusLabel renders the status for the label: "0" marks transport-level
// failures that never produced a response.
func statusLabel(status int) string {
	if status <= 0 {
		return "0"
	}
	return strconv.Itoa(status)
}
