package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for requestsTotal
const (
	outcomeExact    = "exact"
	outcomeVector   = "vector"
	outcomeFallback = "fallback"
	outcomeFixture  = "fixture"
)

// Adapter labels for adapterFailuresTotal
const (
	adapterExact  = "exact"
	adapterVector = "vector"
)

var (
	// requestsTotal counts completed searches by how the result was produced.
	// Labels: outcome (exact, vector, fallback, fixture)
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ideactx",
		Subsystem: "pipeline",
		Name:      "requests_total",
		Help:      "Total search requests by outcome",
	}, []string{"outcome"})

	// requestDuration measures end-to-end pipeline latency.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ideactx",
		Subsystem: "pipeline",
		Name:      "request_duration_seconds",
		Help:      "Search pipeline latency by tier",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"tier"})

	// stageHits observes how many hits each stage returned.
	// Labels: stage (exact, module, class, method)
	stageHits = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ideactx",
		Subsystem: "pipeline",
		Name:      "stage_hits",
		Help:      "Hits returned per stage",
		Buckets:   []float64{0, 1, 2, 5, 10, 20},
	}, []string{"stage"})

	// adapterFailuresTotal counts backend calls that degraded to no hits.
	// Labels: adapter (exact, vector)
	adapterFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ideactx",
		Subsystem: "pipeline",
		Name:      "adapter_failures_total",
		Help:      "Backend calls that failed or were unavailable",
	}, []string{"adapter"})

	// budgetTruncatedTotal counts responses cut by the token budget.
	budgetTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ideactx",
		Subsystem: "pipeline",
		Name:      "budget_truncated_total",
		Help:      "Responses truncated by the context token budget",
	})

	// rerankUsedTotal counts responses reordered by the reranker.
	rerankUsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ideactx",
		Subsystem: "pipeline",
		Name:      "rerank_used_total",
		Help:      "Responses reordered by the external reranker",
	})
)
