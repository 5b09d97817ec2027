package memory

import (
	"context"
	"sync"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// Store implements the workflow, execution, and lending stores with
// in-process maps. This is for testing purposes only.
type Store struct {
	mu         sync.RWMutex
	workflows  map[string]*domain.Workflow
	executions map[string]*domain.WorkflowExecution
	nodes      map[string]*domain.NodeExecution
	nodeIndex  map[string][]string // executionID -> node execution IDs, insertion order
	lending    map[string]*domain.LendingExecution
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		workflows:  make(map[string]*domain.Workflow),
		executions: make(map[string]*domain.WorkflowExecution),
		nodes:      make(map[string]*domain.NodeExecution),
		nodeIndex:  make(map[string][]string),
		lending:    make(map[string]*domain.LendingExecution),
	}
}

// SaveWorkflow persists a workflow definition
func (s *Store) SaveWorkflow(ctx context.Context, workflow *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *workflow
	s.workflows[workflow.ID] = &copied
	return nil
}

// GetWorkflow retrieves a workflow definition
func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, ok := s.workflows[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := *workflow
	return &copied, nil
}

// SaveExecution persists an execution row
func (s *Store) SaveExecution(ctx context.Context, execution *domain.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *execution
	s.executions[execution.ID] = &copied
	return nil
}

// GetExecution retrieves an execution row
func (s *Store) GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, ok := s.executions[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := *execution
	return &copied, nil
}

// SaveNodeExecution persists a node execution row
func (s *Store) SaveNodeExecution(ctx context.Context, node *domain.NodeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID]; !exists {
		s.nodeIndex[node.ExecutionID] = append(s.nodeIndex[node.ExecutionID], node.ID)
	}
	copied := *node
	s.nodes[node.ID] = &copied
	return nil
}

// GetNodeExecution retrieves a node execution row
func (s *Store) GetNodeExecution(ctx context.Context, id string) (*domain.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := *node
	return &copied, nil
}

// ListNodeExecutions returns an execution's node history in creation order
func (s *Store) ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.nodeIndex[executionID]
	nodes := make([]*domain.NodeExecution, 0, len(ids))
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			copied := *node
			nodes = append(nodes, &copied)
		}
	}
	return nodes, nil
}

// CreateLendingExecution claims the node execution id; a second claim for
// the same id fails with ErrDuplicateOperation
func (s *Store) CreateLendingExecution(ctx context.Context, record *domain.LendingExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lending[record.NodeExecutionID]; exists {
		return ports.ErrDuplicateOperation
	}
	copied := *record
	s.lending[record.NodeExecutionID] = &copied
	return nil
}

// UpdateLendingExecution overwrites an existing lending execution row
func (s *Store) UpdateLendingExecution(ctx context.Context, record *domain.LendingExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.lending[record.NodeExecutionID] = &copied
	return nil
}

// GetLendingExecutionByNode retrieves the lending row claimed by a node
// execution
func (s *Store) GetLendingExecutionByNode(ctx context.Context, nodeExecutionID string) (*domain.LendingExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.lending[nodeExecutionID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := *record
	return &copied, nil
}
