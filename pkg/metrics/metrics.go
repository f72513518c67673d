// Package metrics provides the centralized Prometheus registry for the
// request engine. The collectors themselves are defined next to the code
// that increments them (engine, download, cache) to keep packages
// self-contained and avoid circular dependencies.
//
// This package documents every metric the repository exposes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the engine.
// All collectors are registered via promauto in their owning packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/engine):
//   - fetchwave_requests_total{method, status_class} (Counter): Completed network calls
//   - fetchwave_request_duration_seconds{method} (Histogram): Network call duration
//   - fetchwave_request_failures_total{category} (Counter): Abandoned requests by
//     category (network, timeout, status, advisory, handler)
//   - fetchwave_dedup_dropped_total (Counter): Requests suppressed by the visited set
//   - fetchwave_generations_total (Counter): Breadth-first waves dispatched
//   - fetchwave_spawned_requests_total (Counter): Requests spawned by response handlers
//
// Admission Metrics (pkg/ratelimit):
//   - fetchwave_admission_wait_seconds (Histogram): Time spent waiting for a
//     concurrency slot and rate spacing
//
// Retry Metrics (pkg/engine):
//   - fetchwave_retries_total{category} (Counter): Retry attempts by failure category
//   - fetchwave_retry_backoff_seconds{category} (Histogram): Backoff slept between attempts
//   - fetchwave_retry_exhausted_total{category} (Counter): Requests that ran out of attempts
//
// Download Metrics (pkg/download):
//   - fetchwave_downloads_total{strategy} (Counter): Completed downloads by naming strategy
//   - fetchwave_download_bytes_total (Counter): Bytes streamed to disk
//
// Cache Metrics (pkg/cache):
//   - fetchwave_cache_hits_total (Counter): Response cache hits
//   - fetchwave_cache_misses_total (Counter): Response cache misses
//   - fetchwave_cache_errors_total{operation} (Counter): Cache operation errors
//
// Export Metrics (pkg/export):
//   - fetchwave_export_recorded_total{section} (Counter): Results recorded by section
//   - fetchwave_export_writes_total (Counter): Export documents written to disk
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   sum(rate(fetchwave_request_failures_total[5m])) /
//   sum(rate(fetchwave_requests_total[5m]))
//
//   # P95 Network Latency
//   histogram_quantile(0.95, rate(fetchwave_request_duration_seconds_bucket[5m]))
//
//   # Cache Hit Rate
//   sum(rate(fetchwave_cache_hits_total[5m])) /
//   (sum(rate(fetchwave_cache_hits_total[5m])) + sum(rate(fetchwave_cache_misses_total[5m])))
//
//   # Dedup Effectiveness
//   rate(fetchwave_dedup_dropped_total[5m])
