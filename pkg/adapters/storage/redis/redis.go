package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// Store implements the workflow, execution, and lending stores on Redis
type Store struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStore creates a Redis-backed store. Rows expire after ttl; zero
// disables expiry.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveWorkflow persists a workflow definition
func (s *Store) SaveWorkflow(ctx context.Context, workflow *domain.Workflow) error {
	return s.setJSON(ctx, workflowKey(workflow.ID), workflow)
}

// GetWorkflow retrieves a workflow definition
func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	var workflow domain.Workflow
	if err := s.getJSON(ctx, workflowKey(id), &workflow); err != nil {
		return nil, err
	}
	return &workflow, nil
}

// SaveExecution persists an execution row
func (s *Store) SaveExecution(ctx context.Context, execution *domain.WorkflowExecution) error {
	if err := s.setJSON(ctx, executionKey(execution.ID), execution); err != nil {
		return err
	}

	s.logger.Debug("execution saved",
		zap.String("execution_id", execution.ID),
		zap.String("status", string(execution.Status)))
	return nil
}

// GetExecution retrieves an execution row
func (s *Store) GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	var execution domain.WorkflowExecution
	if err := s.getJSON(ctx, executionKey(id), &execution); err != nil {
		return nil, err
	}
	return &execution, nil
}

// SaveNodeExecution persists a node execution row and indexes it under its
// execution
func (s *Store) SaveNodeExecution(ctx context.Context, node *domain.NodeExecution) error {
	if err := s.setJSON(ctx, nodeExecutionKey(node.ID), node); err != nil {
		return err
	}

	indexKey := executionNodesKey(node.ExecutionID)
	if err := s.client.SAdd(ctx, indexKey, node.ID).Err(); err != nil {
		return fmt.Errorf("failed to index node execution: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, indexKey, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set index TTL: %w", err)
		}
	}
	return nil
}

// GetNodeExecution retrieves a node execution row
func (s *Store) GetNodeExecution(ctx context.Context, id string) (*domain.NodeExecution, error) {
	var node domain.NodeExecution
	if err := s.getJSON(ctx, nodeExecutionKey(id), &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// ListNodeExecutions returns an execution's node history ordered by start time
func (s *Store) ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error) {
	ids, err := s.client.SMembers(ctx, executionNodesKey(executionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list node executions: %w", err)
	}

	nodes := make([]*domain.NodeExecution, 0, len(ids))
	for _, id := range ids {
		node, err := s.GetNodeExecution(ctx, id)
		if err != nil {
			// Rows can expire ahead of their index entry.
			continue
		}
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.StartedAt != nil && b.StartedAt != nil && !a.StartedAt.Equal(*b.StartedAt) {
			return a.StartedAt.Before(*b.StartedAt)
		}
		return a.ID < b.ID
	})
	return nodes, nil
}

// CreateLendingExecution claims the node execution id with SETNX. The unique
// key is what makes the claim exclusive under concurrent attempts.
func (s *Store) CreateLendingExecution(ctx context.Context, record *domain.LendingExecution) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal lending execution: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, lendingKey(record.NodeExecutionID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to claim lending execution: %w", err)
	}
	if !claimed {
		return ports.ErrDuplicateOperation
	}
	return nil
}

// UpdateLendingExecution overwrites an existing lending execution row
func (s *Store) UpdateLendingExecution(ctx context.Context, record *domain.LendingExecution) error {
	return s.setJSON(ctx, lendingKey(record.NodeExecutionID), record)
}

// GetLendingExecutionByNode retrieves the lending row claimed by a node
// execution
func (s *Store) GetLendingExecutionByNode(ctx context.Context, nodeExecutionID string) (*domain.LendingExecution, error) {
	var record domain.LendingExecution
	if err := s.getJSON(ctx, lendingKey(nodeExecutionID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ports.ErrNotFound
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func workflowKey(id string) string {
	return fmt.Sprintf("conductor:workflow:%s", id)
}

func executionKey(id string) string {
	return fmt.Sprintf("conductor:execution:%s", id)
}

func nodeExecutionKey(id string) string {
	return fmt.Sprintf("conductor:nodeexec:%s", id)
}

func executionNodesKey(executionID string) string {
	return fmt.Sprintf("conductor:execution:%s:nodes", executionID)
}

func lendingKey(nodeExecutionID string) string {
	return fmt.Sprintf("conductor:lending:node:%s", nodeExecutionID)
}
