package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MetricCompilationsTotal counts user distance functions compiled for the first time
	MetricCompilationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knngraph_metric_compilations_total",
		Help: "Total number of user distance functions compiled",
	})
	// MetricCompileCacheHitsTotal counts compile requests served from the identity cache
	MetricCompileCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knngraph_metric_compile_cache_hits_total",
		Help: "Compile requests answered by a previously compiled artifact",
	})
	// MetricWarmupDurationSeconds measures the one-time warm-up of a compiled metric
	MetricWarmupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knngraph_metric_warmup_duration_seconds",
		Help:    "Duration of compiled metric warm-up",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
	// MetricWarmupErrorsTotal counts user functions that failed warm-up
	MetricWarmupErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knngraph_metric_warmup_errors_total",
		Help: "Compiled metrics whose warm-up evaluation failed",
	})
)
