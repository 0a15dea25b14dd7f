package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qanoon_rag_search_duration_seconds",
			Help:    "Search processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"cached"},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_search_total",
			Help: "Total number of searches by outcome",
		},
		[]string{"status"},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qanoon_rag_search_results_count",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	CandidateHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qanoon_rag_candidate_hits",
			Help:    "Chunk candidates returned by the store per retrieval path",
			Buckets: []float64{0, 10, 25, 50, 100, 200, 400},
		},
		[]string{"path"},
	)

	EmbeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_embedding_requests_total",
			Help: "Embedding provider calls by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	EmbeddingTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_embedding_tokens_used",
			Help: "Total embedding tokens used",
		},
		[]string{"model"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_cache_errors_total",
			Help: "Cache backend errors by operation",
		},
		[]string{"op"},
	)

	JudgmentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_judgments_ingested_total",
			Help: "Judgments processed by ingestion, by outcome",
		},
		[]string{"status"},
	)

	ChunksEmbedded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qanoon_rag_chunks_embedded_total",
			Help: "Total chunks embedded during ingestion",
		},
	)

	CitationLinks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_citation_links_total",
			Help: "Citation links written, by resolution state",
		},
		[]string{"resolved"},
	)

	IngestionJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qanoon_rag_ingestion_jobs_total",
			Help: "Ingestion jobs by terminal status",
		},
		[]string{"status"},
	)

	CitationGraphEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qanoon_rag_citation_graph_edges",
			Help: "Resolved citation edges in the judgment store",
		},
	)

	StoreRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qanoon_rag_store_records",
			Help: "Rows in the judgment store as of the last stats read, by kind",
		},
		[]string{"kind"},
	)
)

func Init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(SearchResultsCount)
	prometheus.MustRegister(CandidateHits)
	prometheus.MustRegister(EmbeddingRequests)
	prometheus.MustRegister(EmbeddingTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheErrors)
	prometheus.MustRegister(JudgmentsIngested)
	prometheus.MustRegister(ChunksEmbedded)
	prometheus.MustRegister(CitationLinks)
	prometheus.MustRegister(IngestionJobs)
	prometheus.MustRegister(CitationGraphEdges)
	prometheus.MustRegister(StoreRecords)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
