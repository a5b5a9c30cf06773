// Package metrics holds the Prometheus collectors for the answer pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeAnswered       = "answered"
	OutcomeConversational = "conversational"
	OutcomeDegraded       = "degraded"
	OutcomeFailed         = "failed"
)

// Cache lookup results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
	CacheError  = "error"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_requests_total",
			Help: "Total number of processed questions by outcome.",
		},
		[]string{"outcome"},
	)

	stageDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_ask_stage_duration_ms",
			Help:    "Pipeline stage latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"stage"},
	)

	extractionStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_extraction_strategy_total",
			Help: "Accepted queries by extraction strategy.",
		},
		[]string{"strategy"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_cache_lookups_total",
			Help: "Generation cache lookups by result.",
		},
		[]string{"result"},
	)

	schemaFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ekaya_ask_schema_fallbacks_total",
			Help: "Times the built-in schema was substituted for a failed discovery.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_ask_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		stageDurationMs,
		extractionStrategyTotal,
		cacheLookupsTotal,
		schemaFallbacksTotal,
		httpRequestsTotal,
	)
}

func ObserveRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func ObserveExtraction(strategy string) {
	extractionStrategyTotal.WithLabelValues(strategy).Inc()
}

func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

func IncrementSchemaFallback() {
	schemaFallbacksTotal.Inc()
}

func ObserveHTTPRequest(method, path, status string) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}
