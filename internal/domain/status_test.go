package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	all := []ExecutionStatus{
		StatusPending, StatusRunning, StatusSuccess, StatusFailed,
		StatusCancelled, StatusRetrying, StatusWaitingForSignature,
	}

	for _, terminal := range []ExecutionStatus{StatusSuccess, StatusFailed, StatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		for _, next := range all {
			assert.False(t, terminal.CanTransitionTo(next),
				"%s -> %s must be rejected", terminal, next)
		}
	}
}

func TestRetryLoopTransitions(t *testing.T) {
	assert.True(t, StatusRunning.CanTransitionTo(StatusRetrying))
	assert.True(t, StatusRetrying.CanTransitionTo(StatusRunning))
	assert.True(t, StatusRetrying.CanTransitionTo(StatusFailed))
	assert.False(t, StatusRetrying.CanTransitionTo(StatusSuccess))
	assert.False(t, StatusPending.CanTransitionTo(StatusSuccess))
}

func TestSignatureWaitTransitions(t *testing.T) {
	assert.True(t, StatusRunning.CanTransitionTo(StatusWaitingForSignature))
	assert.True(t, StatusWaitingForSignature.CanTransitionTo(StatusRunning))
	assert.True(t, StatusWaitingForSignature.CanTransitionTo(StatusFailed))
	assert.True(t, StatusWaitingForSignature.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusWaitingForSignature.CanTransitionTo(StatusSuccess))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusWaitingForSignature.Valid())
	assert.False(t, ExecutionStatus("UNKNOWN").Valid())
}

func TestNodeErrorRetryable(t *testing.T) {
	assert.True(t, NewNodeError(CodeTimeout, "t").Retryable())
	assert.True(t, (&NodeError{Code: CodeProviderUnavailable, Transient: true}).Retryable())
	assert.False(t, (&NodeError{Code: CodeProviderUnavailable}).Retryable())
	assert.False(t, NewNodeError(CodeValidationError, "v").Retryable())
	assert.False(t, NewNodeError(CodeSimulationFailed, "s").Retryable())
	assert.False(t, NewNodeError(CodeExecutionReverted, "r").Retryable())
}

func TestRetryPolicyBudget(t *testing.T) {
	assert.Equal(t, 0, RetryPolicy{}.Budget())
	assert.Equal(t, DefaultMaxRetries, RetryPolicy{AutoRetryOnFailure: true}.Budget())
	assert.Equal(t, 5, RetryPolicy{AutoRetryOnFailure: true, MaxRetries: 5}.Budget())
}

func TestOperationRequiresAmount(t *testing.T) {
	assert.True(t, OperationSupply.RequiresAmount())
	assert.True(t, OperationBorrow.RequiresAmount())
	assert.False(t, OperationSetCollateral.RequiresAmount())
	assert.False(t, Operation("stake").Valid())
}
