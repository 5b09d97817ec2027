package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	executionsStarted   prometheus.Counter
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec
	nodesExecuted       *prometheus.CounterVec
	nodeRetries         *prometheus.CounterVec
	nodeDuration        *prometheus.HistogramVec
	lendingOperations   *prometheus.CounterVec
	lendingDuration     *prometheus.HistogramVec
	activeExecutions    prometheus.Gauge
	subscriberCount     prometheus.Gauge
	tokensIssued        prometheus.Counter
	tokensRejected      *prometheus.CounterVec
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		executionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_executions_started_total",
				Help: "Total number of workflow executions started",
			},
		),
		executionsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_executions_completed_total",
				Help: "Total number of workflow executions reaching a terminal status",
			},
			[]string{"status"},
		),
		executionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_execution_duration_seconds",
				Help:    "Workflow execution duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_nodes_executed_total",
				Help: "Total number of node executions by type and status",
			},
			[]string{"node_type", "status"},
		),
		nodeRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_node_retries_total",
				Help: "Total number of node retry attempts",
			},
			[]string{"node_type"},
		),
		nodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"node_type"},
		),
		lendingOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_lending_operations_total",
				Help: "Total number of lending operations by provider, operation, and status",
			},
			[]string{"provider", "operation", "status"},
		),
		lendingDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_lending_operation_duration_seconds",
				Help:    "Lending operation duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "operation"},
		),
		activeExecutions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "conductor_active_executions",
				Help: "Number of currently active workflow executions",
			},
		),
		subscriberCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "conductor_event_subscribers",
				Help: "Number of attached live-status subscribers",
			},
		),
		tokensIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_subscription_tokens_issued_total",
				Help: "Total number of subscription tokens issued",
			},
		),
		tokensRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_subscription_tokens_rejected_total",
				Help: "Total number of subscription tokens rejected by reason",
			},
			[]string{"reason"},
		),
	}
}

// RecordExecutionStarted increments the count of started executions
func (c *Collector) RecordExecutionStarted() {
	c.executionsStarted.Inc()
}

// RecordExecutionCompleted records a terminal execution with its duration
func (c *Collector) RecordExecutionCompleted(status string, duration time.Duration) {
	c.executionsCompleted.WithLabelValues(status).Inc()
	c.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeExecuted records a finished node execution attempt
func (c *Collector) RecordNodeExecuted(nodeType, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordNodeRetry increments the retry count for a node type
func (c *Collector) RecordNodeRetry(nodeType string) {
	c.nodeRetries.WithLabelValues(nodeType).Inc()
}

// RecordLendingOperation records a lending operation outcome
func (c *Collector) RecordLendingOperation(provider, operation, status string, duration time.Duration) {
	c.lendingOperations.WithLabelValues(provider, operation, status).Inc()
	c.lendingDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// SetActiveExecutions sets the number of currently active executions
func (c *Collector) SetActiveExecutions(count int) {
	c.activeExecutions.Set(float64(count))
}

// SetSubscriberCount sets the number of attached subscribers
func (c *Collector) SetSubscriberCount(count int) {
	c.subscriberCount.Set(float64(count))
}

// RecordTokenIssued increments the count of issued subscription tokens
func (c *Collector) RecordTokenIssued() {
	c.tokensIssued.Inc()
}

// RecordTokenRejected increments the count of rejected tokens by reason
func (c *Collector) RecordTokenRejected(reason string) {
	c.tokensRejected.WithLabelValues(reason).Inc()
}
