package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsInitialization(t *testing.T) {
	assert.NotNil(t, IndexOperationsTotal)
	assert.NotNil(t, IndexBuildDurationSeconds)
	assert.NotNil(t, IndexQueryDurationSeconds)
	assert.NotNil(t, IndexedSamples)
	assert.NotNil(t, RepairedRowsTotal)
	assert.NotNil(t, RepairedEntriesTotal)
	assert.NotNil(t, MetricCompilationsTotal)
	assert.NotNil(t, MetricCompileCacheHitsTotal)
	assert.NotNil(t, MetricWarmupDurationSeconds)
	assert.NotNil(t, MetricWarmupErrorsTotal)
}

func TestRepairCountersAreLabelledByBackend(t *testing.T) {
	before := testutil.ToFloat64(RepairedEntriesTotal.WithLabelValues("metrics-test"))
	RepairedEntriesTotal.WithLabelValues("metrics-test").Add(3)
	after := testutil.ToFloat64(RepairedEntriesTotal.WithLabelValues("metrics-test"))
	assert.Equal(t, before+3, after)
}
