package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_pages_created_total",
		Help: "Total number of story pages persisted.",
	})
	pipelineFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "story_pipeline_failures_total",
		Help: "Total number of page pipeline stage failures.",
	}, []string{"stage"})
	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "story_pipeline_duration_seconds",
		Help:    "Duration of successful page pipelines.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_active_sessions",
		Help: "Number of live story sessions.",
	})
)
