// Package metrics exposes Prometheus collectors for the download pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptovip_requests_total",
		Help: "Total number of orchestrated download requests",
	}, []string{"outcome", "failure_kind"})

	AccessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptovip_access_decisions_total",
		Help: "Access gate decisions by reason",
	}, []string{"reason"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptovip_cache_lookups_total",
		Help: "Content cache lookups by result",
	}, []string{"result"})

	CacheEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptovip_cache_evicted_total",
		Help: "Stale cache entries removed by eviction passes",
	})

	EngineFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptovip_engine_fetches_total",
		Help: "Engine fetch attempts by engine and outcome",
	}, []string{"engine", "outcome"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uptovip_fetch_duration_seconds",
		Help:    "Duration of engine fetches including upload",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"engine"})

	BytesTransferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptovip_bytes_transferred_total",
		Help: "Total bytes fetched from origin platforms",
	})

	InflightFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uptovip_inflight_fetches",
		Help: "Fetches currently running",
	})

	StatsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uptovip_stats_dropped_total",
		Help: "Download results dropped because the stats buffer was full",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptovip_http_requests_total",
		Help: "API requests by method and status code",
	}, []string{"method", "status"})

	HTTPRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uptovip_http_rejected_total",
		Help: "API requests rejected before reaching a handler",
	}, []string{"reason"})
)
