package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup outcomes
const (
	OutcomeFresh       = "fresh"
	OutcomeStale       = "stale"
	OutcomeMiss        = "miss"
	OutcomeDecodeError = "decode_error"
	OutcomeStoreError  = "store_error"
)

// Metrics holds the service's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	staleFallbacks   *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	cacheEvictions   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powderchaser",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by entity type and outcome.",
		}, []string{"entity", "outcome"}),
		staleFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powderchaser",
			Name:      "stale_fallbacks_total",
			Help:      "Responses served from an expired cache entry after a failed refresh.",
		}, []string{"entity"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powderchaser",
			Name:      "upstream_requests_total",
			Help:      "Resort API requests by endpoint and result.",
		}, []string{"endpoint", "result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "powderchaser",
			Name:      "upstream_request_duration_seconds",
			Help:      "Resort API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powderchaser",
			Name:      "cache_evictions_total",
			Help:      "Entries removed by the expiry sweep.",
		}, []string{"entity"}),
	}

	registry.MustRegister(m.cacheLookups, m.staleFallbacks, m.upstreamRequests, m.upstreamLatency, m.cacheEvictions)
	return m
}

func (m *Metrics) CacheLookup(entity, outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) StaleFallback(entity string) {
	if m == nil {
		return
	}
	m.staleFallbacks.WithLabelValues(entity).Inc()
}

func (m *Metrics) UpstreamRequest(endpoint, result string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(endpoint, result).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *Metrics) CacheEvictions(entity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(entity).Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
