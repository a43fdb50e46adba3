// Package metrics defines the Prometheus instruments for the flow editor
// and runner. The flow package itself stays metrics-free; counters are
// incremented at the API and run layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GraphMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covalt_graph_mutations_total",
		Help: "Total graph mutations applied, labelled by operation.",
	}, []string{"op"})

	ConnectionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covalt_connections_rejected_total",
		Help: "Total connection attempts rejected by validation or capacity.",
	})

	HistoryOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covalt_history_ops_total",
		Help: "Total undo/redo operations, labelled by direction.",
	}, []string{"direction"})

	PlansBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covalt_plans_built_total",
		Help: "Total run plans computed.",
	})

	NodesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covalt_nodes_executed_total",
		Help: "Total node executions, labelled by node type and status.",
	}, []string{"node_type", "status"})

	CacheReused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covalt_cache_reused_total",
		Help: "Total nodes served from cached outputs instead of executing.",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "covalt_run_duration_ms",
		Help:    "End-to-end graph run latency in milliseconds.",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000},
	})
)
