package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IndexOperationsTotal counts build/query calls by backend and outcome
	IndexOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knngraph_index_operations_total",
			Help: "Total number of KNN index build and query calls",
		},
		[]string{"backend", "operation", "status"},
	)

	// IndexBuildDurationSeconds measures Build latency per backend
	IndexBuildDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knngraph_index_build_duration_seconds",
			Help:    "Duration of KNN index builds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"backend"},
	)

	// IndexQueryDurationSeconds measures Query latency per backend
	IndexQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knngraph_index_query_duration_seconds",
			Help:    "Duration of KNN index queries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"backend"},
	)

	// IndexedSamples tracks the size of the most recently built index per backend
	IndexedSamples = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "knngraph_indexed_samples",
			Help: "Number of samples in the most recently built index",
		},
		[]string{"backend"},
	)
)
