package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	agentSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlrag_agent_sessions_total",
			Help: "Total number of question sessions by outcome.",
		},
		[]string{"outcome"},
	)
	agentAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlrag_agent_attempts_total",
			Help: "Total number of SQL generation attempts by result.",
		},
		[]string{"result"},
	)
	agentAttemptsPerSession = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlrag_agent_attempts_per_session",
			Help:    "Number of generation attempts used per session.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)
	safetyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlrag_safety_rejections_total",
			Help: "Total number of SQL texts refused before execution, by class.",
		},
		[]string{"class"},
	)
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlrag_llm_requests_total",
			Help: "Total number of language model calls by purpose and status.",
		},
		[]string{"purpose", "status"},
	)
	llmRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlrag_llm_request_duration_seconds",
			Help:    "Language model call latency by purpose.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"purpose"},
	)
	rateLimitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlrag_ratelimit_wait_seconds",
			Help:    "Time spent blocked by the per-minute model call quota.",
			Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 60},
		},
	)
	retrievedDocuments = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlrag_retrieved_documents",
			Help:    "Number of schema documents supplied as context per question.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"mode"},
	)
	indexedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlrag_indexed_documents",
			Help: "Number of schema documents in the vector index after the last rebuild.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlrag_query_duration_seconds",
			Help:    "Validated SQL execution latency by outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"success"},
	)
)

func init() {
	prometheus.MustRegister(
		agentSessionsTotal,
		agentAttemptsTotal,
		agentAttemptsPerSession,
		safetyRejectionsTotal,
		llmRequestsTotal,
		llmRequestDurationSeconds,
		rateLimitWaitSeconds,
		retrievedDocuments,
		indexedDocuments,
		queryDurationSeconds,
	)
}

func ObserveSession(outcome string, attempts int) {
	agentSessionsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		agentAttemptsPerSession.Observe(float64(attempts))
	}
}

func IncrementAttempt(result string) {
	agentAttemptsTotal.WithLabelValues(result).Inc()
}

func IncrementSafetyRejection(class string) {
	safetyRejectionsTotal.WithLabelValues(class).Inc()
}

func ObserveLLMCall(purpose string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmRequestsTotal.WithLabelValues(purpose, status).Inc()
	llmRequestDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func ObserveRateLimitWait(waited time.Duration) {
	rateLimitWaitSeconds.Observe(waited.Seconds())
}

func ObserveRetrieval(mode string, documents int) {
	retrievedDocuments.WithLabelValues(mode).Observe(float64(documents))
}

func SetIndexedDocuments(count int) {
	if count < 0 {
		count = 0
	}
	indexedDocuments.Set(float64(count))
}

func ObserveQuery(success bool, elapsed time.Duration) {
	label := "false"
	if success {
		label = "true"
	}
	queryDurationSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
}
