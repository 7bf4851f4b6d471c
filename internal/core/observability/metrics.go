// Package observability exposes the Prometheus metrics of the engine.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	requestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parcel_request_outcomes_total",
			Help: "Parcel request outcomes by status.",
		},
		[]string{"status"},
	)

	parcelsCommittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parcels_committed_total",
			Help: "Features committed to the output layer.",
		},
	)

	parcelsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parcels_skipped_total",
			Help: "Features skipped as duplicates.",
		},
	)

	wfsCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfs_cache_results_total",
			Help: "In-run WFS cache results by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncRequestOutcome(status string) {
	requestOutcomesTotal.WithLabelValues(status).Inc()
}

func IncParcelCommitted() { parcelsCommittedTotal.Inc() }

func IncParcelSkipped() { parcelsSkippedTotal.Inc() }

func IncWFSCacheHit() { wfsCacheResults.WithLabelValues("hit").Inc() }

func IncWFSCacheMiss() { wfsCacheResults.WithLabelValues("miss").Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
