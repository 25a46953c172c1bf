package storage

import "time"

// Metrics receives client telemetry. A Prometheus-backed implementation
// lives in pkg/metrics; passing nil disables collection with zero overhead.
type Metrics interface {
	// ObserveRequest records one completed network attempt.
	ObserveRequest(method string, status int, duration time.Duration)

	// IncRetry counts a scheduled retry for a method.
	IncRetry(method string)

	// SetBreakerState publishes the current circuit-breaker state.
	SetBreakerState(state string)

	// IncChunk counts an upload-chunk outcome: "sent", "completed" or
	// "failed".
	IncChunk(outcome string)
}

// noopMetrics is used when no Metrics implementation is supplied.
type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, int, time.Duration) {}
func (noopMetrics) IncRetry(string)                           {}
func (noopMetrics) SetBreakerState(string)                    {}
func (noopMetrics) IncChunk(string)                           {}
