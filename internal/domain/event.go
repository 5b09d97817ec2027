package domain

import "time"

// EventType classifies execution lifecycle events
type EventType string

const (
	EventTypeExecutionStarted   EventType = "execution.started"
	EventTypeExecutionSucceeded EventType = "execution.succeeded"
	EventTypeExecutionFailed    EventType = "execution.failed"
	EventTypeExecutionCancelled EventType = "execution.cancelled"

	EventTypeNodeStarted          EventType = "node.started"
	EventTypeNodeSucceeded        EventType = "node.succeeded"
	EventTypeNodeFailed           EventType = "node.failed"
	EventTypeNodeRetrying         EventType = "node.retrying"
	EventTypeNodeCancelled        EventType = "node.cancelled"
	EventTypeNodeWaitingSignature EventType = "node.waiting_signature"
)

// ExecutionEvent is emitted once per state transition and fanned out to
// live-status subscribers
type ExecutionEvent struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	ExecutionID string                 `json:"execution_id"`
	NodeID      string                 `json:"node_id,omitempty"`
	Status      ExecutionStatus        `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}
