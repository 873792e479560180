// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_writes_total",
			Help: "Total number of document writes by collection",
		},
		[]string{"collection", "operation"},
	)

	DocumentWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_write_failures_total",
			Help: "Total number of failed document writes by collection and error code",
		},
		[]string{"collection", "error_code"},
	)

	TransitionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_transition_attempts_total",
			Help: "Total number of status transition attempts by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	TransactionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_transaction_retries_total",
			Help: "Total number of optimistic transaction retries by collection",
		},
		[]string{"collection"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "service_operation_duration_seconds",
			Help: "Duration of service operations in seconds",
		},
		[]string{"service", "operation"},
	)

	WatchSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docstore_watch_subscriptions",
			Help: "Number of active document watch subscriptions per collection",
		},
		[]string{"collection"},
	)
)
