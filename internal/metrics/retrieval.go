package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and generation Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "search_requests_total",
			Help:      "Total number of searches by outcome",
		},
		[]string{"collection", "outcome"}, // "ok" / "short_circuit" / "error"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sieve",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds, filter resolution included",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection"},
	)

	SearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sieve",
			Name:      "search_hits",
			Help:      "Number of hits returned by a search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"collection"},
	)

	CandidateDocuments = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sieve",
			Name:      "search_candidate_documents",
			Help:      "Size of the candidate document set of a restricted search",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"collection"},
	)

	SelectedDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sieve",
			Name:      "rank_mass_selected_documents",
			Help:      "Number of documents selected by rank mass",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "generation_requests_total",
			Help:      "Total number of answer generations by status",
		},
		[]string{"model", "status"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "generation_tokens_total",
			Help:      "Total generation tokens consumed",
		},
		[]string{"model", "type"}, // "prompt" / "completion"
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sieve",
			Name:      "generation_duration_seconds",
			Help:      "Answer generation duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers search and generation metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchDuration,
		SearchHits,
		CandidateDocuments,
		SelectedDocuments,
		GenerationRequestsTotal,
		GenerationTokensTotal,
		GenerationDuration,
	)
	retrievalMetricsRegistered = true
}
