package ports

import "time"

// MetricsCollector records operational metrics for the engine
type MetricsCollector interface {
	RecordExecutionStarted()
	RecordExecutionCompleted(status string, duration time.Duration)
	RecordNodeExecuted(nodeType, status string, duration time.Duration)
	RecordNodeRetry(nodeType string)
	RecordLendingOperation(provider, operation, status string, duration time.Duration)
	SetActiveExecutions(count int)
	SetSubscriberCount(count int)
	RecordTokenIssued()
	RecordTokenRejected(reason string)
}
