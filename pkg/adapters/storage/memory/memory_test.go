package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

func TestLendingClaimIsExclusive(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	record := &domain.LendingExecution{
		ID:              "rec-1",
		NodeExecutionID: "ne-1",
		Status:          domain.StatusPending,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, store.CreateLendingExecution(ctx, record))

	dup := &domain.LendingExecution{ID: "rec-2", NodeExecutionID: "ne-1"}
	assert.ErrorIs(t, store.CreateLendingExecution(ctx, dup), ports.ErrDuplicateOperation)
}

func TestLendingClaimUnderConcurrency(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreateLendingExecution(ctx, &domain.LendingExecution{
				ID:              "rec",
				NodeExecutionID: "ne-1",
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestNodeExecutionsListedInCreationOrder(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveNodeExecution(ctx, &domain.NodeExecution{
			ID:          id,
			ExecutionID: "exec-1",
			NodeID:      "n-" + id,
			Status:      domain.StatusRunning,
		}))
	}

	// Updating a row must not duplicate it in the index.
	require.NoError(t, store.SaveNodeExecution(ctx, &domain.NodeExecution{
		ID:          "b",
		ExecutionID: "exec-1",
		NodeID:      "n-b",
		Status:      domain.StatusSuccess,
	}))

	nodes, err := store.ListNodeExecutions(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "b", nodes[1].ID)
	assert.Equal(t, "c", nodes[2].ID)
	assert.Equal(t, domain.StatusSuccess, nodes[1].Status)
}

func TestGetExecutionReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveExecution(ctx, &domain.WorkflowExecution{
		ID:     "exec-1",
		Status: domain.StatusRunning,
	}))

	first, err := store.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	first.Status = domain.StatusFailed

	second, err := store.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, second.Status)
}

func TestGetMissingRowsReturnNotFound(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.GetWorkflow(ctx, "ghost")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = store.GetExecution(ctx, "ghost")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = store.GetNodeExecution(ctx, "ghost")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = store.GetLendingExecutionByNode(ctx, "ghost")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
