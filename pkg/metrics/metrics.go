package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent records outbound delivery attempts by kind and result (sent|retried|failed).
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirma_messages_sent_total",
			Help: "Total number of outbound message attempts",
		},
		[]string{"kind", "result"},
	)

	// MessagesScheduled counts queue rows created by the planner, by kind.
	MessagesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirma_messages_scheduled_total",
			Help: "Total number of queue items scheduled",
		},
		[]string{"kind"},
	)

	// MessagesCancelled counts queue rows cancelled, by reason (reply|party).
	MessagesCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirma_messages_cancelled_total",
			Help: "Total number of queue items cancelled",
		},
		[]string{"reason"},
	)

	// InboundReplies counts inbound guest messages handled by the reply listener.
	InboundReplies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "confirma_inbound_replies_total",
			Help: "Total number of inbound guest replies processed",
		},
	)

	// DispatchDuration measures the wall time of one dispatcher batch.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "confirma_dispatch_batch_duration_seconds",
			Help:    "Duration of one dispatcher batch run",
			Buckets: prometheus.DefBuckets,
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confirma_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
