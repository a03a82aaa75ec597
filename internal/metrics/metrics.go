// Package metrics defines Prometheus instrumentation for store operations
// and remote service calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
)

var (
	// StoreOperationsTotal tracks store operations by operation and outcome.
	// Status is "success" or the structured error type.
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total session store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RemoteRequestDuration tracks remote service call latency in seconds.
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_request_duration_seconds",
			Help:    "Remote service request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// IngestPollsTotal tracks ingestion completion polls by kind and outcome.
	IngestPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_polls_total",
			Help: "Ingestion completion polls by kind (documents/websites) and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// ObserveOperation records the outcome of one store operation.
func ObserveOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = string(apperrors.AsStructured(err).Type)
	}
	StoreOperationsTotal.WithLabelValues(operation, status).Inc()
}
