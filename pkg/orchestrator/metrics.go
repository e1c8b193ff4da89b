package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for sessions.
var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebatch_batches_total",
		Help: "Total processed batches by outcome",
	}, []string{"outcome"})

	itemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagebatch_items_total",
		Help: "Total generated items accumulated by sessions",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebatch_sessions_total",
		Help: "Total finished sessions by stop reason",
	}, []string{"stop_reason"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagebatch_session_duration_seconds",
		Help:    "Session wall time in seconds",
		Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
	})

	sessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagebatch_session_active",
		Help: "1 while a session is running or paused",
	})
)
