package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RepairedRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knngraph_repaired_rows_total",
		Help: "Neighbor rows that contained sentinel entries and were repaired",
	}, []string{"backend"})
	RepairedEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knngraph_repaired_entries_total",
		Help: "Sentinel neighbor entries replaced with random-cluster placeholders",
	}, []string{"backend"})
)
