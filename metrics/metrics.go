// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RuntimeCalls counts runtime protocol calls by operation and error code.
	RuntimeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cb_runtime_calls_total",
			Help: "Runtime protocol calls by operation and error code",
		},
		[]string{"operation", "code"},
	)

	// IngestResults counts finished package ingestions by outcome.
	IngestResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cb_ingest_results_total",
			Help: "Package ingestions by outcome",
		},
		[]string{"outcome"},
	)

	IngestQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cb_ingest_queue_depth",
		Help: "Archives waiting for an ingest worker",
	})

	PackageCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cb_package_cache_hits_total",
		Help: "Launch package cache hits",
	})
	PackageCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cb_package_cache_misses_total",
		Help: "Launch package cache misses",
	})

	// ProgressExpired counts records and elements closed by the expiry policy.
	ProgressExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cb_progress_expired_total",
			Help: "Progress records and elements moved to expired by the expiry policy",
		},
		[]string{"kind"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cb_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cb_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
