package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "primer_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"operation", "model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "primer_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "primer_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"operation", "model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "primer_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"operation", "model"},
	)
)

// observeRequest фиксирует метрики одного обращения к AI API.
func observeRequest(operation, model, status string, seconds float64) {
	aiRequestsTotal.With(prometheus.Labels{"operation": operation, "model": model, "status": status}).Inc()
	if status == "success" {
		aiRequestDuration.With(prometheus.Labels{"operation": operation, "model": model}).Observe(seconds)
	}
}
