package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	apiInflight   prometheus.Gauge
	searches      *prometheus.CounterVec
	searchLatency prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	storeOps      *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	storeState    *prometheus.GaugeVec
	dangling      prometheus.Counter
	statements    prometheus.Gauge
	parseErrors   prometheus.Gauge
	courses       prometheus.Gauge
}

var storeStates = []string{"disabled", "connecting", "available", "degraded"}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tkg_api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tkg_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tkg_api_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tkg_search_requests_total",
			Help: "Catalogue searches by outcome.",
		}, []string{"outcome"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tkg_search_duration_seconds",
			Help:    "Catalogue search latency.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tkg_search_cache_lookups_total",
			Help: "Search cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tkg_store_operations_total",
			Help: "Property store operations by operation and result code.",
		}, []string{"op", "code"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tkg_store_operation_duration_seconds",
			Help:    "Property store operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		storeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tkg_store_state",
			Help: "1 for the current property store state, 0 otherwise.",
		}, []string{"state"}),
		dangling: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tkg_dangling_references_total",
			Help: "Section references that did not resolve against the catalogue.",
		}),
		statements: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tkg_catalogue_statements",
			Help: "Statements in the loaded catalogue.",
		}),
		parseErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tkg_catalogue_parse_errors",
			Help: "Malformed lines skipped while loading the catalogue.",
		}),
		courses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tkg_catalogue_courses",
			Help: "Courses in the loaded catalogue.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.searches, m.searchLatency, m.cacheLookups,
		m.storeOps, m.storeLatency, m.storeState,
		m.dangling, m.statements, m.parseErrors, m.courses,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// TrackInflight bumps the in-flight gauge and returns the matching release.
func (m *Metrics) TrackInflight() func() {
	if m == nil {
		return func() {}
	}
	m.apiInflight.Inc()
	return m.apiInflight.Dec
}

func (m *Metrics) ObserveSearch(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchLatency.Observe(dur.Seconds())
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStoreOp(op, code string, dur time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.storeOps.WithLabelValues(op, code).Inc()
	m.storeLatency.WithLabelValues(op).Observe(dur.Seconds())
}

// SetStoreState flips the one-hot state gauge.
func (m *Metrics) SetStoreState(state string) {
	if m == nil {
		return
	}
	for _, s := range storeStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.storeState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) AddDangling(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dangling.Add(float64(n))
}

func (m *Metrics) SetCatalogue(statements, parseErrors, courses int) {
	if m == nil {
		return
	}
	m.statements.Set(float64(statements))
	m.parseErrors.Set(float64(parseErrors))
	m.courses.Set(float64(courses))
}
