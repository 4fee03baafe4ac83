package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "typesage_parse_seconds",
		Help:    "Time spent parsing a source submission.",
		Buckets: prometheus.DefBuckets,
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "typesage_analysis_seconds",
		Help:    "Time spent on analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	AnalysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typesage_analysis_total",
		Help: "Total number of analysis requests by outcome.",
	}, []string{"outcome"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typesage_cache_hits_total",
		Help: "Total number of cache hits by cache kind.",
	}, []string{"cache"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typesage_cache_misses_total",
		Help: "Total number of cache misses by cache kind.",
	}, []string{"cache"})

	AnnotationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typesage_annotations_applied_total",
		Help: "Total number of annotations inserted into source.",
	})

	UndeclaredFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typesage_undeclared_found_total",
		Help: "Total number of undeclared variable occurrences reported.",
	})

	OracleRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "typesage_oracle_requests_total",
		Help: "Total number of oracle requests by outcome.",
	}, []string{"outcome"})

	OracleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "typesage_oracle_seconds",
		Help:    "Latency of oracle requests.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "typesage_http_request_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
