// Package metrics exposes Prometheus instrumentation for the screening core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	screeningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btc_screening",
		Subsystem: "screener",
		Name:      "screenings_total",
		Help:      "Count of completed screenings by action and risk level.",
	}, []string{"action", "risk_level"})

	screeningDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "btc_screening",
		Subsystem: "screener",
		Name:      "screening_duration_seconds",
		Help:      "Duration of screening operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	indexerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "btc_screening",
		Subsystem: "indexer_client",
		Name:      "operations_total",
		Help:      "Count of blockchain indexer operations.",
	}, []string{"operation", "status"})

	indexerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "btc_screening",
		Subsystem: "indexer_client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of blockchain indexer operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "btc_screening",
		Subsystem: "indexer_client",
		Name:      "rate_limited_total",
		Help:      "Count of indexer calls rejected by the request window.",
	})

	walkNodesAnalyzed = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "btc_screening",
		Subsystem: "path_walker",
		Name:      "nodes_analyzed",
		Help:      "Transactions analyzed per path walk.",
		Buckets:   []float64{0, 5, 10, 25, 50, 100, 250},
	})

	walkSanctionedFound = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "btc_screening",
		Subsystem: "path_walker",
		Name:      "sanctioned_nodes_found",
		Help:      "Sanctioned nodes discovered per path walk.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25},
	})
)

// ObserveScreening records a completed screening
func ObserveScreening(action, riskLevel string, started time.Time) {
	screeningsTotal.WithLabelValues(action, riskLevel).Inc()
	screeningDuration.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

// ObserveIndexerOp records an indexer client operation
func ObserveIndexerOp(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	indexerRequestsTotal.WithLabelValues(operation, status).Inc()
	indexerRequestDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

// ObserveRateLimited records a call rejected by the rate-limit window
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}

// ObserveWalk records the size of a completed path walk
func ObserveWalk(nodesAnalyzed, sanctionedFound int) {
	walkNodesAnalyzed.Observe(float64(nodesAnalyzed))
	walkSanctionedFound.Observe(float64(sanctionedFound))
}
