package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResolutionsTotal counts resolution runs by outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depforge_resolutions_total",
			Help: "Total number of dependency resolution runs by outcome",
		},
		[]string{"outcome"}, // resolved, conflict, cancelled, error
	)

	// ResolutionDuration tracks end-to-end resolution duration in seconds
	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depforge_resolution_duration_seconds",
			Help:    "Dependency resolution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
	)

	// CandidatesRejectedTotal counts candidate versions discarded during search
	CandidatesRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "depforge_candidates_rejected_total",
			Help: "Total number of candidate versions rejected during resolution",
		},
	)

	// BacktracksTotal counts decision points unwound during search
	BacktracksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "depforge_backtracks_total",
			Help: "Total number of backtracking steps taken during resolution",
		},
	)

	// DependenciesResolved tracks graph size per successful resolution
	DependenciesResolved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depforge_dependencies_resolved",
			Help:    "Number of dependencies pinned per successful resolution",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
		},
	)

	// RetrieverLookupsTotal counts retriever calls by operation
	RetrieverLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depforge_retriever_lookups_total",
			Help: "Total number of retriever lookups by operation",
		},
		[]string{"operation"}, // versions, dependencies, git_reference
	)
)

// MetricsHandler returns an HTTP handler exposing prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
