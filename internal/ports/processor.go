package ports

import (
	"context"
	"time"

	"github.com/loopfi/conductor/internal/domain"
)

// Signal lets a processor ask the coordinator to suspend a node instead of
// finishing it
type Signal string

// SignalAwaitSignature suspends the node in WAITING_FOR_SIGNATURE until the
// user confirms or rejects out of band
const SignalAwaitSignature Signal = "await_signature"

// ValidationResult is the outcome of a pure config check
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ExecutionContext carries run-scoped data into a processor invocation
type ExecutionContext struct {
	ExecutionID string

	// Trigger is the input the execution was started with
	Trigger map[string]interface{}

	// Upstream maps dependency node IDs to their (already mapped) outputs
	Upstream map[string]map[string]interface{}

	// SignatureConfirmed is set when the node re-runs after an out-of-band
	// signature confirmation
	SignatureConfirmed bool
}

// ProcessorInput is the full invocation payload for a node processor.
// Secrets are supplied per call and must not be cached by the processor.
type ProcessorInput struct {
	NodeID          string
	NodeExecutionID string
	Node            domain.Node
	Secrets         SecretSource
	Context         ExecutionContext
}

// ProcessorMetadata records invocation timing
type ProcessorMetadata struct {
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// ProcessorOutput is the structured result a processor returns. Processors
// never panic across this boundary: internal failures come back as
// Success=false with a populated Error.
type ProcessorOutput struct {
	NodeID   string                 `json:"node_id"`
	Success  bool                   `json:"success"`
	Output   map[string]interface{} `json:"output,omitempty"`
	Error    *domain.NodeError      `json:"error,omitempty"`
	Signal   Signal                 `json:"signal,omitempty"`
	Metadata ProcessorMetadata      `json:"metadata"`
}

// NodeProcessor is the polymorphic executor for one node type
type NodeProcessor interface {
	NodeType() domain.NodeType

	// Validate is pure and side-effect free
	Validate(node domain.Node) ValidationResult

	Execute(ctx context.Context, input ProcessorInput) ProcessorOutput
}
