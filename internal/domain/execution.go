package domain

import "time"

// WorkflowExecution is one run of a workflow definition
type WorkflowExecution struct {
	ID         string                 `json:"id"`
	WorkflowID string                 `json:"workflow_id"`
	Status     ExecutionStatus        `json:"status"`
	Trigger    map[string]interface{} `json:"trigger,omitempty"`
	StartedAt  time.Time              `json:"started_at"`

	// CompletedAt is set exactly when Status becomes terminal
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NodeExecution is one node instance within an execution. Rows are created
// by the coordinator when a node begins and are never deleted; they form the
// audit trail of the run.
type NodeExecution struct {
	ID          string                 `json:"id"`
	ExecutionID string                 `json:"execution_id"`
	NodeID      string                 `json:"node_id"`
	Status      ExecutionStatus        `json:"status"`
	Input       map[string]interface{} `json:"input,omitempty"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       *NodeError             `json:"error,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	RetryCount  int                    `json:"retry_count"`
}
