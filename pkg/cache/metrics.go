package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagebatch_cache_hits_total",
			Help: "Total number of extraction cache hits",
		},
		[]string{"layer"},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagebatch_cache_misses_total",
			Help: "Total number of extraction cache misses (absent or stale)",
		},
	)

	// cacheBytes counts encoded entry bytes by direction (read, write).
	cacheBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagebatch_cache_bytes_total",
			Help: "Encoded bytes read from and written to the extraction cache",
		},
		[]string{"direction"},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagebatch_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // get, set, delete, scan
	)
)
