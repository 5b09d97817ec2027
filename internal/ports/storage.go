package ports

import (
	"context"
	"errors"

	"github.com/loopfi/conductor/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateOperation is returned when a lending execution row already
// exists for the node execution id being claimed
var ErrDuplicateOperation = errors.New("lending execution already exists for node execution")

// WorkflowStore persists workflow definitions. Definition CRUD and schema
// validation live outside the core; this is the read/write boundary the
// coordinator consumes.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, workflow *domain.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error)
}

// ExecutionStore persists execution and node execution rows. Status queries
// must always reflect the last durably persisted state.
type ExecutionStore interface {
	SaveExecution(ctx context.Context, execution *domain.WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error)
	SaveNodeExecution(ctx context.Context, node *domain.NodeExecution) error
	GetNodeExecution(ctx context.Context, id string) (*domain.NodeExecution, error)
	ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error)
}

// LendingStore persists lending execution audit rows keyed by node execution id
type LendingStore interface {
	// CreateLendingExecution atomically claims the node execution id.
	// Returns ErrDuplicateOperation when a row already exists for it; the
	// claim must not be a check-then-act race under concurrent retries.
	CreateLendingExecution(ctx context.Context, record *domain.LendingExecution) error

	UpdateLendingExecution(ctx context.Context, record *domain.LendingExecution) error

	// GetLendingExecutionByNode returns the row for a node execution id, or
	// ErrNotFound when the id has never been claimed
	GetLendingExecutionByNode(ctx context.Context, nodeExecutionID string) (*domain.LendingExecution, error)
}
