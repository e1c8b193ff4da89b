// Package metrics provides the Prometheus registry and HTTP handler for
// pagebatch. All metrics are defined in their respective packages
// (ratelimit, orchestrator, cache, generation/gemini) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by pagebatch.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limiter Metrics (pkg/ratelimit):
//   - pagebatch_limiter_queue_length (Gauge): Tickets waiting in the queue
//   - pagebatch_limiter_admissions_total (Counter): Tickets executed successfully
//   - pagebatch_limiter_wait_seconds (Histogram): Time spent waiting for quota compliance
//   - pagebatch_limiter_retries_total (Counter): Tickets re-queued after a transient rate limit
//   - pagebatch_limiter_rejections_total{reason} (Counter): Rejections (quota, cancelled, retry_exhausted, failed)
//   - pagebatch_limiter_daily_requests (Gauge): Requests admitted on the current date
//
// Session Metrics (pkg/orchestrator):
//   - pagebatch_batches_total{outcome} (Counter): Processed batches (success, failed)
//   - pagebatch_items_total (Counter): Generated items accumulated
//   - pagebatch_sessions_total{stop_reason} (Counter): Finished sessions by stop reason
//   - pagebatch_session_duration_seconds (Histogram): Session wall time
//   - pagebatch_session_active (Gauge): 1 while a session is running or paused
//
// Cache Metrics (pkg/cache):
//   - pagebatch_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - pagebatch_cache_misses_total (Counter): Cache misses
//   - pagebatch_cache_bytes_total{direction} (Counter): Encoded bytes read and written
//   - pagebatch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Generation Metrics (pkg/generation/gemini):
//   - pagebatch_generation_requests_total{model, outcome} (Counter): Requests by outcome
//   - pagebatch_generation_request_duration_seconds{model} (Histogram): Request duration
//   - pagebatch_generation_items_total{model} (Counter): Items returned
//
// Example Prometheus Queries:
//
//   # Admission rate per minute
//   rate(pagebatch_limiter_admissions_total[5m]) * 60
//
//   # Daily quota headroom
//   pagebatch_limiter_daily_requests
//
//   # Batch failure ratio
//   rate(pagebatch_batches_total{outcome="failed"}[15m]) / rate(pagebatch_batches_total[15m])
//
//   # P95 generation latency
//   histogram_quantile(0.95, rate(pagebatch_generation_request_duration_seconds_bucket[5m]))
