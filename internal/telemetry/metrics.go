package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики run и блоков.
var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableflow_runs_total",
		Help: "Runs by final or pause status",
	}, []string{"status"})

	RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableflow_runs_active",
		Help: "Runs whose controller loop is currently executing blocks",
	})

	BlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tableflow_block_duration_seconds",
		Help:    "Block execution time",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"type", "status"})
)

// Метрики вызовов внешнего сервиса.
var (
	RemoteCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableflow_remote_calls_total",
		Help: "Remote calls by outcome (success, retry, failed)",
	}, []string{"outcome"})

	RemoteCallsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableflow_remote_calls_in_flight",
		Help: "Remote calls currently outstanding",
	})

	RemoteCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tableflow_remote_call_duration_seconds",
		Help:    "Duration of a single remote call attempt",
		Buckets: prometheus.ExponentialBuckets(0.05, 3, 10),
	})
)

// HTTPRequestsTotal — запросы к API.
var HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tableflow_http_requests_total",
	Help: "Total HTTP requests handled by tableflow-api",
}, []string{"method", "status"})

// Метрики RabbitMQ.
var (
	MQConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableflow_mq_connected",
		Help: "1 while the RabbitMQ connection is open",
	})

	MQReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tableflow_mq_reconnects_total",
		Help: "Successful RabbitMQ reconnects",
	})

	MQMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableflow_mq_messages_total",
		Help: "Consumed messages by queue and outcome (ack, requeue, dead_letter)",
	}, []string{"queue", "outcome"})
)
