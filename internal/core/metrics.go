package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "orderimport"

// Import outcomes used as label values.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

var (
	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "import_duration_seconds",
		Help:      "End-to-end import duration by outcome.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "imports_total",
		Help:      "Imports by outcome.",
	}, []string{"outcome"})

	importedOrders = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "orders_imported_total",
		Help:      "Orders persisted by successful imports.",
	})

	importedItems = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "order_items_imported_total",
		Help:      "Order items persisted by successful imports.",
	})

	observerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "observer_failures_total",
		Help:      "Observer errors and panics by observer.",
	}, []string{"observer"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "events_total",
		Help:      "Import events handled by the performance observer, by action.",
	}, []string{"action"})

	auditPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "audit_logs_pruned_total",
		Help:      "Audit records removed by the retention job.",
	})
)
