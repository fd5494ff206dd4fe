package prometheus

import (
	"strconv"
	"time"
)

// Buckets for the planner's histograms.
var (
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultSolveDurationBuckets  = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 10, 30}
	DefaultNodeBuckets           = []float64{10, 100, 1000, 10000, 100000, 1000000}
	DefaultPlanCountBuckets      = []float64{0, 1, 2, 3, 5, 10, 20}
	DefaultRecommendationBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30}
)

// PlannerMetrics holds every metric the planner records.
type PlannerMetrics struct {
	RecommendationsTotal   CounterVec
	RecommendationDuration HistogramVec
	PlansPerRecommendation HistogramVec

	SolverSolvesTotal   CounterVec
	SolverSolveDuration HistogramVec
	SolverNodesExplored HistogramVec
	SolverInflight      GaugeVec

	CatalogCacheHits   CounterVec
	CatalogCacheMisses CounterVec

	EventsPublishedTotal CounterVec
	WorkerMessagesTotal  CounterVec

	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
}

// NewPlannerMetrics registers the planner metrics on c.
func NewPlannerMetrics(c MetricsCollector) *PlannerMetrics {
	return &PlannerMetrics{
		RecommendationsTotal: c.RegisterCounter("recommendations_total",
			"Top-K recommendation requests by outcome.", "outcome"),
		RecommendationDuration: c.RegisterHistogram("recommendation_duration_seconds",
			"Wall time of a top-K recommendation.", DefaultRecommendationBuckets),
		PlansPerRecommendation: c.RegisterHistogram("plans_per_recommendation",
			"Number of plans returned per recommendation.", DefaultPlanCountBuckets),

		SolverSolvesTotal: c.RegisterCounter("solver_solves_total",
			"Oracle calls by resulting status.", "status"),
		SolverSolveDuration: c.RegisterHistogram("solver_solve_duration_seconds",
			"Wall time of one oracle call.", DefaultSolveDurationBuckets),
		SolverNodesExplored: c.RegisterHistogram("solver_nodes_explored",
			"Branch-and-bound nodes explored per oracle call.", DefaultNodeBuckets),
		SolverInflight: c.RegisterGauge("solver_inflight",
			"Oracle calls currently running."),

		CatalogCacheHits: c.RegisterCounter("catalog_cache_hits_total",
			"Catalog lookups served from the cache."),
		CatalogCacheMisses: c.RegisterCounter("catalog_cache_misses_total",
			"Catalog lookups that fell through to the repository."),

		EventsPublishedTotal: c.RegisterCounter("events_published_total",
			"Plan events handed to the broker by result.", "result"),
		WorkerMessagesTotal: c.RegisterCounter("worker_messages_total",
			"Recommendation requests consumed by the worker, by outcome.", "outcome"),

		HTTPRequestsTotal: c.RegisterCounter("http_requests_total",
			"HTTP requests by method, route and status.", "method", "path", "status"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds",
			"HTTP request latency by method and route.", DefaultHTTPDurationBuckets, "method", "path"),
	}
}

// NewNoopPlannerMetrics returns metrics that record nothing.
func NewNoopPlannerMetrics() *PlannerMetrics {
	return &PlannerMetrics{
		RecommendationsTotal:   noopCounterVec{},
		RecommendationDuration: noopHistogramVec{},
		PlansPerRecommendation: noopHistogramVec{},
		SolverSolvesTotal:      noopCounterVec{},
		SolverSolveDuration:    noopHistogramVec{},
		SolverNodesExplored:    noopHistogramVec{},
		SolverInflight:         noopGaugeVec{},
		CatalogCacheHits:       noopCounterVec{},
		CatalogCacheMisses:     noopCounterVec{},
		EventsPublishedTotal:   noopCounterVec{},
		WorkerMessagesTotal:    noopCounterVec{},
		HTTPRequestsTotal:      noopCounterVec{},
		HTTPRequestDuration:    noopHistogramVec{},
	}
}

// ObserveRecommendation records one finished recommendation.
func (m *PlannerMetrics) ObserveRecommendation(outcome string, d time.Duration, plans int) {
	m.RecommendationsTotal.WithLabelValues(outcome).Inc()
	m.RecommendationDuration.WithLabelValues().Observe(d.Seconds())
	m.PlansPerRecommendation.WithLabelValues().Observe(float64(plans))
}

// ObserveSolve records one oracle call.  status is "error" for failures.
func (m *PlannerMetrics) ObserveSolve(status string, d time.Duration, nodes int64) {
	m.SolverSolvesTotal.WithLabelValues(status).Inc()
	m.SolverSolveDuration.WithLabelValues().Observe(d.Seconds())
	if nodes > 0 {
		m.SolverNodesExplored.WithLabelValues().Observe(float64(nodes))
	}
}

// SolveStarted and SolveFinished track in-flight oracle calls.
func (m *PlannerMetrics) SolveStarted() { m.SolverInflight.WithLabelValues().Inc() }

// SolveFinished is the counterpart of SolveStarted.
func (m *PlannerMetrics) SolveFinished() { m.SolverInflight.WithLabelValues().Dec() }

// CacheHit records a catalog cache hit.
func (m *PlannerMetrics) CacheHit() { m.CatalogCacheHits.WithLabelValues().Inc() }

// CacheMiss records a catalog cache miss.
func (m *PlannerMetrics) CacheMiss() { m.CatalogCacheMisses.WithLabelValues().Inc() }

// EventPublished records a plan event publish attempt ("ok", "error", "rejected").
func (m *PlannerMetrics) EventPublished(result string) {
	m.EventsPublishedTotal.WithLabelValues(result).Inc()
}

// WorkerMessage records one consumed request ("ok", "rejected", "malformed",
// "publish_error").
func (m *PlannerMetrics) WorkerMessage(outcome string) {
	m.WorkerMessagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *PlannerMetrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
