// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	BeaconsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetally_beacons_total",
			Help: "Beacons received, by outcome",
		},
		[]string{"result"}, // "stored", "rejected", "error"
	)

	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagetally_sessions_opened_total",
			Help: "New session files created",
		},
	)

	SessionsContinued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagetally_sessions_continued_total",
			Help: "Beacons appended to an open session",
		},
	)

	OpenSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagetally_open_sessions",
			Help: "Sessions held by the open-session index after the last sweep",
		},
	)

	// Aggregation
	StatsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetally_stats_duration_seconds",
			Help:    "Time spent computing stats, cache hits included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"unit"},
	)

	StatsOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetally_stats_total",
			Help: "Stats requests by outcome code",
		},
		[]string{"outcome"},
	)

	SessionsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetally_sessions_excluded_total",
			Help: "Sessions dropped during aggregation",
		},
		[]string{"reason"}, // "dev", "bot", "spam"
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetally_cache_hits_total",
			Help: "Cached artifacts served without rebuilding",
		},
		[]string{"layer"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetally_cache_misses_total",
			Help: "Artifacts rebuilt because they were missing or stale",
		},
		[]string{"layer"},
	)

	// Geolocation
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetally_geo_lookups_total",
			Help: "Geolocation lookups by provider and result",
		},
		[]string{"provider", "result"}, // "hit", "miss", "error"
	)

	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetally_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "route", "status"},
	)
)

// RecordAPIRequest observes one handled request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// RecordStats observes one stats computation.
func RecordStats(unit, outcome string, duration time.Duration) {
	StatsDuration.WithLabelValues(unit).Observe(duration.Seconds())
	StatsOutcomes.WithLabelValues(outcome).Inc()
}
