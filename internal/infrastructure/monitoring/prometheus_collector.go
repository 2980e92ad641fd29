package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/pkg/cache"
)

// PrometheusCollector records resolver, lifecycle and HTTP metrics.
// It implements ports.MetricsRecorder.
type PrometheusCollector struct {
	// Resolver
	cacheLookups     *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	// Lifecycle
	transitions   *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepSessions *prometheus.CounterVec

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	factory promauto.Factory
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the collector's metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		factory: factory,

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabstream_resolver_cache_lookups_total",
			Help: "Stream status lookups by cache outcome (hit, miss, stale)",
		}, []string{"result"}),

		upstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabstream_upstream_calls_total",
			Help: "Calls to the upstream video provider by outcome",
		}, []string{"outcome"}),

		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collabstream_upstream_call_duration_seconds",
			Help:    "Latency of upstream video provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabstream_session_transitions_total",
			Help: "Session status transitions",
		}, []string{"from", "to"}),

		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "collabstream_sweep_duration_seconds",
			Help:    "Duration of periodic sweeps over active sessions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		sweepSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabstream_sweep_sessions_total",
			Help: "Sessions visited by sweeps by outcome",
		}, []string{"outcome"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collabstream_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collabstream_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusCollector) RecordCacheLookup(result string) {
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) RecordUpstreamCall(outcome string, duration time.Duration) {
	p.upstreamCalls.WithLabelValues(outcome).Inc()
	p.upstreamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordTransition(from, to domain.SessionStatus) {
	p.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (p *PrometheusCollector) RecordSweep(duration time.Duration, result ports.SweepResult) {
	p.sweepDuration.Observe(duration.Seconds())
	p.sweepSessions.WithLabelValues("refreshed").Add(float64(result.Refreshed))
	p.sweepSessions.WithLabelValues("skipped").Add(float64(result.Skipped))
	p.sweepSessions.WithLabelValues("failed").Add(float64(result.Failed))
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveResolverCache exports resolver cache occupancy, read from stats at scrape time.
func (p *PrometheusCollector) ObserveResolverCache(stats func() cache.Stats) {
	p.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "collabstream_resolver_cache_entries",
		Help: "Stream statuses held by the resolver cache",
	}, func() float64 {
		return float64(stats().TotalKeys)
	})
	p.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "collabstream_resolver_cache_stale_entries",
		Help: "Cached stream statuses past their TTL, kept as fallback",
	}, func() float64 {
		return float64(stats().Expired)
	})
}
