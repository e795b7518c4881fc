package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ChainsTotal         *prometheus.CounterVec
	ChainDuration       prometheus.Histogram
	QuestionsTotal      *prometheus.CounterVec
	ExtractionDuration  *prometheus.HistogramVec
	LLMCallsTotal       *prometheus.CounterVec
	SubmissionsTotal    *prometheus.CounterVec
	ActiveChains        prometheus.Gauge
)

func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ChainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_chains_total",
			Help: "Total number of quiz chain runs by terminal state.",
		},
		[]string{"state", "reason"}, // state: completed, failed
	)

	ChainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_chain_duration_seconds",
			Help:    "Wall clock duration of quiz chain runs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_questions_total",
			Help: "Total number of question attempts by outcome.",
		},
		[]string{"outcome"}, // correct, incorrect, error
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "page_extraction_duration_seconds",
			Help:    "Duration of browser page extractions.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"domain"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "Total number of language model calls.",
		},
		[]string{"purpose", "status"}, // purpose: structure, solve
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answer_submissions_total",
			Help: "Total number of answer submissions by verdict.",
		},
		[]string{"verdict"}, // correct, incorrect, error
	)

	ActiveChains = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_quiz_chains",
			Help: "Current number of quiz chains in flight.",
		},
	)
}
