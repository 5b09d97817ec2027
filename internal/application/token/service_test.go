package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noopMetrics struct{}

func (noopMetrics) RecordExecutionStarted()                                  {}
func (noopMetrics) RecordExecutionCompleted(string, time.Duration)           {}
func (noopMetrics) RecordNodeExecuted(string, string, time.Duration)         {}
func (noopMetrics) RecordNodeRetry(string)                                   {}
func (noopMetrics) RecordLendingOperation(string, string, string, time.Duration) {}
func (noopMetrics) SetActiveExecutions(int)                                  {}
func (noopMetrics) SetSubscriberCount(int)                                   {}
func (noopMetrics) RecordTokenIssued()                                       {}
func (noopMetrics) RecordTokenRejected(string)                               {}

func newTestService(ttl time.Duration) *Service {
	return NewService("test-secret", ttl, noopMetrics{}, zap.NewNop())
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService(5 * time.Minute)

	signed, expiresAt, err := svc.Issue("exec-1", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	userID, err := svc.Verify("exec-1", signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyRejectsOtherExecution(t *testing.T) {
	svc := newTestService(5 * time.Minute)

	signed, _, err := svc.Issue("exec-a", "user-1")
	require.NoError(t, err)

	// A valid, unexpired token for execution A must not open execution B.
	_, err = svc.Verify("exec-b", signed)
	assert.ErrorIs(t, err, ErrExecutionMismatch)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := newTestService(-time.Minute)

	signed, _, err := svc.Issue("exec-1", "user-1")
	require.NoError(t, err)

	_, err = svc.Verify("exec-1", signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	svc := newTestService(5 * time.Minute)
	other := NewService("other-secret", 5*time.Minute, noopMetrics{}, zap.NewNop())

	signed, _, err := other.Issue("exec-1", "user-1")
	require.NoError(t, err)

	_, err = svc.Verify("exec-1", signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := newTestService(5 * time.Minute)

	_, err := svc.Verify("exec-1", "not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
