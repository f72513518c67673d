package engine

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for engine operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchwave_requests_total",
		Help: "Total requests by method and status class",
	}, []string{"method", "status_class"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetchwave_request_duration_seconds",
		Help:    "Request duration in seconds by method, retries included",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchwave_request_failures_total",
		Help: "Total abandoned requests by failure category",
	}, []string{"category"})

	dedupDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchwave_dedup_dropped_total",
		Help: "Total requests dropped as duplicates before dispatch",
	})

	generationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchwave_generations_total",
		Help: "Total breadth-first generations executed",
	})

	spawnedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchwave_spawned_requests_total",
		Help: "Total follow-up requests spawned by response handlers",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchwave_retries_total",
		Help: "Total retry attempts by failure category",
	}, []string{"category"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetchwave_retry_backoff_seconds",
		Help:    "Backoff duration before retries by failure category",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"category"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchwave_retry_exhausted_total",
		Help: "Total requests that exhausted their retry budget by failure category",
	}, []string{"category"})
)

// statusClass renders a status code as its class label ("2xx", "4xx").
func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
