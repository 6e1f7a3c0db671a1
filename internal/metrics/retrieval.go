package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics: vector search, escalation, LLM fallback, result cache, write-back.
var (
	IsolationViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "isolation_violations_total",
			Help:      "Matches dropped because their scope differed from the searched scope",
		},
		[]string{"backend", "kind"},
	)

	VectorSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medrag",
			Name:      "vector_search_duration_seconds",
			Help:      "Vector store search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "kind", "status"},
	)

	TierOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "escalation_tier_outcomes_total",
			Help:      "Escalation tier outcomes",
		},
		[]string{"tier", "outcome"},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "escalations_total",
			Help:      "Finished escalations by final state and satisfying tier",
		},
		[]string{"state", "satisfied_at"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medrag",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "type"},
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "result_cache_total",
			Help:      "Result cache lookups",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)

	ResultCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medrag",
			Name:      "result_cache_entries",
			Help:      "Entries currently held by the result cache",
		},
	)

	CacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "result_cache_invalidations_total",
			Help:      "Scope invalidations applied to the result cache",
		},
		[]string{"origin"}, // "local" / "remote"
	)

	WriteBacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medrag",
			Name:      "write_backs_total",
			Help:      "Derived Q/A write-backs",
		},
		[]string{"status"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Call once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		IsolationViolationsTotal,
		VectorSearchDuration,
		TierOutcomesTotal,
		EscalationsTotal,
		LLMRequestsTotal,
		LLMRequestDuration,
		LLMTokensTotal,
		ResultCacheTotal,
		ResultCacheEntries,
		CacheInvalidationsTotal,
		WriteBacksTotal,
	)
	retrievalMetricsRegistered = true
}
