// Package metrics defines the Prometheus metric collectors used by the
// content search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	SearchQueriesTotal    *prometheus.CounterVec
	SearchLatency         *prometheus.HistogramVec
	SearchResultsCount    prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	CorpusEntries         prometheus.Gauge
	CorpusCategoryEntries *prometheus.GaugeVec
	IndexTerms            prometheus.Gauge
	IndexBuildSeconds     prometheus.Gauge
	IndexReloadsTotal     *prometheus.CounterVec
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, empty_query, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		CorpusEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_entries",
				Help: "Number of entries in the active content index.",
			},
		),
		CorpusCategoryEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "corpus_category_entries",
				Help: "Number of entries per category in the active content index.",
			},
			[]string{"category"},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms in the active inverted index.",
			},
		),
		IndexBuildSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_build_seconds",
				Help: "Time taken to build the active content index.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_reloads_total",
				Help: "Content index reload attempts by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusEntries,
		m.CorpusCategoryEntries,
		m.IndexTerms,
		m.IndexBuildSeconds,
		m.IndexReloadsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// IndexSnapshot is the subset of index statistics exported as gauges.
type IndexSnapshot struct {
	Entries         int
	Terms           int
	BuildSeconds    float64
	CategoryEntries map[string]int
}

// ObserveIndex replaces the corpus gauges with the figures of a freshly
// swapped index.
func (m *Metrics) ObserveIndex(s IndexSnapshot) {
	m.CorpusEntries.Set(float64(s.Entries))
	m.IndexTerms.Set(float64(s.Terms))
	m.IndexBuildSeconds.Set(s.BuildSeconds)
	m.CorpusCategoryEntries.Reset()
	for category, n := range s.CategoryEntries {
		m.CorpusCategoryEntries.WithLabelValues(category).Set(float64(n))
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
