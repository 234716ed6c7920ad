package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oilwatch_alerts_emitted_total",
			Help: "Alerts emitted after deduplication",
		},
		[]string{"severity"},
	)

	AlertsReusedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oilwatch_alerts_reused_total",
			Help: "Breaches collapsed onto an existing active alert",
		},
	)

	HealthRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oilwatch_health_recompute_total",
			Help: "Health score recomputations",
		},
		[]string{"status"}, // ok, error
	)

	HealthRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oilwatch_health_recompute_duration_seconds",
			Help:    "End-to-end duration of a health recompute including storage",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	TrendCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oilwatch_trend_cache_hits_total",
			Help: "Trend requests served from the TTL cache",
		},
	)

	TrendCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oilwatch_trend_cache_misses_total",
			Help: "Trend requests that had to rebuild the series",
		},
	)

	IngestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oilwatch_ingest_events_total",
			Help: "Sample-completed events consumed from Kafka",
		},
		[]string{"status"}, // ok, error, malformed, panic
	)

	LimsSamplesImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oilwatch_lims_samples_imported_total",
			Help: "Samples imported from external lab systems",
		},
	)
)
