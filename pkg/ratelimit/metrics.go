package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for admission control.
var (
	limiterQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagebatch_limiter_queue_length",
		Help: "Number of tickets waiting in the rate limiter queue",
	})

	limiterAdmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagebatch_limiter_admissions_total",
		Help: "Total number of tickets executed successfully",
	})

	limiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagebatch_limiter_wait_seconds",
		Help:    "Time spent waiting for rate window or delay compliance",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120},
	})

	limiterRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagebatch_limiter_retries_total",
		Help: "Total number of tickets re-queued after a transient rate-limit failure",
	})

	limiterRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebatch_limiter_rejections_total",
		Help: "Total number of tickets rejected by reason",
	}, []string{"reason"}) // "quota", "cancelled", "retry_exhausted", "failed"

	limiterDailyRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagebatch_limiter_daily_requests",
		Help: "Requests admitted on the current local date",
	})
)
