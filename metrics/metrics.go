// Package metrics exposes Prometheus collectors for tree operations and
// snapshot persistence. A nil *Metrics records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors registered on one registry
type Metrics struct {
	operations      *prometheus.CounterVec
	persistFailures prometheus.Counter
	nodes           prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskfs_operations_total",
				Help: "Total number of tree operations by operation and result",
			},
			[]string{"op", "result"}, // result: "ok", "error"
		),
		persistFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "deskfs_persist_failures_total",
				Help: "Total number of snapshot writes that failed",
			},
		),
		nodes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "deskfs_nodes",
				Help: "Number of nodes in the tree including root",
			},
		),
	}
}

// RecordOperation counts one operation. err decides the result label.
func (m *Metrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// RecordPersistFailure counts one failed snapshot write
func (m *Metrics) RecordPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// SetNodeCount records the current tree size
func (m *Metrics) SetNodeCount(n int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(n))
}

// Handler serves the collectors of gatherer in the Prometheus text format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
