// Package telemetry provides observability primitives for educache.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the fetch layer.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	FetchesTotal     *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEntries     prometheus.Gauge
	CacheBytes       prometheus.Gauge
	RateLimitWaits   *prometheus.CounterVec
	RateLimitRejects *prometheus.CounterVec
	UsageQueueLength prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "educache",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route, and status.",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "educache",
			Name:                            "http_request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "route"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "educache",
			Name:      "http_active_requests",
			Help:      "In-flight HTTP requests.",
		}),

		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "educache",
			Name:      "fetches_total",
			Help:      "Total coordinated fetches by outcome.",
		}, []string{"provider", "operation", "outcome"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "educache",
			Name:                            "upstream_duration_seconds",
			Help:                            "Upstream API call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"provider"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "educache",
			Name:      "cache_hits_total",
			Help:      "Total response cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "educache",
			Name:      "cache_misses_total",
			Help:      "Total response cache misses.",
		}),

		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "educache",
			Name:      "cache_entries",
			Help:      "Durable cache entry count as of the last sweep.",
		}),

		CacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "educache",
			Name:      "cache_bytes",
			Help:      "Durable cache size in bytes as of the last sweep.",
		}),

		RateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "educache",
			Name:      "ratelimit_waits_total",
			Help:      "Blocking acquires that had to wait for a window.",
		}, []string{"provider"}),

		RateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "educache",
			Name:      "ratelimit_rejects_total",
			Help:      "Acquires that timed out without admission.",
		}, []string{"provider"}),

		UsageQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "educache",
			Name:      "usage_queue_length",
			Help:      "Buffered usage records awaiting flush.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.FetchesTotal,
		m.UpstreamDuration,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEntries,
		m.CacheBytes,
		m.RateLimitWaits,
		m.RateLimitRejects,
		m.UsageQueueLength,
	)
	return m
}
