package lending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
	storagemem "github.com/loopfi/conductor/pkg/adapters/storage/memory"
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

// recordingMetrics captures lending operation outcome labels
type recordingMetrics struct {
	noopMetrics
	mu       sync.Mutex
	recorded []string
}

func (r *recordingMetrics) RecordLendingOperation(provider, operation, status string, d time.Duration) {
	r.mu.Lock()
	r.recorded = append(r.recorded, status)
	r.mu.Unlock()
}

func (r *recordingMetrics) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.recorded))
	copy(out, r.recorded)
	return out
}

// fakeProvider counts calls and fails on demand
type fakeProvider struct {
	name          string
	chain         string
	validateErr   error
	simulateFail  bool
	executeErr    error
	executeCalls  int
	simulateCalls int
}

func (f *fakeProvider) Name() string                  { return f.name }
func (f *fakeProvider) SupportsChain(chain string) bool { return chain == f.chain }

func (f *fakeProvider) ValidateConfig(ctx context.Context, req ports.OperationRequest) error {
	return f.validateErr
}

func (f *fakeProvider) Quote(ctx context.Context, req ports.OperationRequest) (*domain.Quote, error) {
	return &domain.Quote{Asset: req.Asset, SupplyAPY: "3.0", FetchedAt: time.Now()}, nil
}

func (f *fakeProvider) Simulate(ctx context.Context, req ports.OperationRequest) (*ports.SimulationResult, error) {
	f.simulateCalls++
	if f.simulateFail {
		return &ports.SimulationResult{OK: false, Reason: "would revert"}, nil
	}
	return &ports.SimulationResult{OK: true, GasEstimate: 21000}, nil
}

func (f *fakeProvider) Execute(ctx context.Context, req ports.OperationRequest, signingKey string) (*domain.TxResult, error) {
	f.executeCalls++
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return &domain.TxResult{TxHash: "0xfeed", GasUsed: 20000, GasPrice: "1", BlockNumber: 42}, nil
}

func (f *fakeProvider) Position(ctx context.Context, chain, walletAddress string) (*domain.Position, error) {
	return &domain.Position{
		Provider:      f.name,
		Chain:         chain,
		WalletAddress: walletAddress,
		HealthFactor:  "2.0",
		FetchedAt:     time.Now(),
	}, nil
}

func newTestService(t *testing.T, provider *fakeProvider) (*Service, *storagemem.Store) {
	t.Helper()
	registry, err := NewProviderRegistry(provider)
	require.NoError(t, err)
	store := storagemem.NewStore()
	return NewService(registry, store, noopMetrics{}, zap.NewNop()), store
}

func testRequest(nodeExecutionID string) Request {
	return Request{
		NodeExecutionID: nodeExecutionID,
		Provider:        "aave",
		Operation: ports.OperationRequest{
			Chain:         "base",
			WalletAddress: "0xabc",
			Operation:     domain.OperationSupply,
			Asset:         "USDC",
			Amount:        "100",
		},
		SigningKey: "key",
	}
}

func TestExecuteRecordsSuccessfulOperation(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base"}
	svc, store := newTestService(t, provider)

	result, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.Nil(t, nerr)
	assert.False(t, result.Replayed)
	assert.NotNil(t, result.Quote)

	record, err := store.GetLendingExecutionByNode(context.Background(), "ne-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, record.Status)
	assert.Equal(t, "0xfeed", record.TxHash)
	assert.NotNil(t, record.PrePosition)
	assert.NotNil(t, record.PostPosition)
	assert.NotNil(t, record.CompletedAt)
	assert.Equal(t, 1, provider.executeCalls)
	assert.Equal(t, 1, provider.simulateCalls)
}

func TestExecuteReplaysPriorSuccessWithoutSecondBroadcast(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base"}
	svc, _ := newTestService(t, provider)

	first, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.Nil(t, nerr)
	require.False(t, first.Replayed)

	second, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.Nil(t, nerr)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Record.TxHash, second.Record.TxHash)
	assert.Equal(t, 1, provider.executeCalls)
}

func TestExecuteSimulationFailureNeverBroadcasts(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base", simulateFail: true}
	svc, store := newTestService(t, provider)

	_, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.NotNil(t, nerr)
	assert.Equal(t, domain.CodeSimulationFailed, nerr.Code)
	assert.False(t, nerr.Retryable())
	assert.Equal(t, 0, provider.executeCalls)

	record, err := store.GetLendingExecutionByNode(context.Background(), "ne-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, record.Status)
	assert.Empty(t, record.TxHash)
	assert.Equal(t, domain.CodeSimulationFailed, record.ErrorCode)
}

func TestExecuteSkipSimulation(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base", simulateFail: true}
	svc, _ := newTestService(t, provider)

	req := testRequest("ne-1")
	req.SkipSimulation = true
	_, nerr := svc.Execute(context.Background(), req)
	require.Nil(t, nerr)
	assert.Equal(t, 0, provider.simulateCalls)
	assert.Equal(t, 1, provider.executeCalls)
}

func TestExecuteUnknownProviderIsNotRetryable(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base"}
	svc, _ := newTestService(t, provider)

	req := testRequest("ne-1")
	req.Provider = "compound"
	_, nerr := svc.Execute(context.Background(), req)
	require.NotNil(t, nerr)
	assert.Equal(t, domain.CodeProviderUnavailable, nerr.Code)
	assert.False(t, nerr.Retryable())
}

func TestExecuteUnsupportedChainIsNotRetryable(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base"}
	svc, _ := newTestService(t, provider)

	req := testRequest("ne-1")
	req.Operation.Chain = "solana"
	_, nerr := svc.Execute(context.Background(), req)
	require.NotNil(t, nerr)
	assert.Equal(t, domain.CodeProviderUnavailable, nerr.Code)
	assert.False(t, nerr.Retryable())
}

func TestExecuteTimeoutIsRetryable(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base", executeErr: context.DeadlineExceeded}
	svc, store := newTestService(t, provider)

	_, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.NotNil(t, nerr)
	assert.Equal(t, domain.CodeTimeout, nerr.Code)
	assert.True(t, nerr.Retryable())

	record, err := store.GetLendingExecutionByNode(context.Background(), "ne-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, record.Status)
}

func TestExecuteValidationFailure(t *testing.T) {
	provider := &fakeProvider{
		name:        "aave",
		chain:       "base",
		validateErr: domain.NewNodeError(domain.CodeValidationError, "asset not listed"),
	}
	svc, store := newTestService(t, provider)

	_, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.NotNil(t, nerr)
	assert.Equal(t, domain.CodeValidationError, nerr.Code)

	// Validation rejects before the audit row is claimed.
	_, err := store.GetLendingExecutionByNode(context.Background(), "ne-1")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestExecuteInFlightDuplicateRejected(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base"}
	svc, store := newTestService(t, provider)

	require.NoError(t, store.CreateLendingExecution(context.Background(), &domain.LendingExecution{
		ID:              "rec-1",
		NodeExecutionID: "ne-1",
		Status:          domain.StatusRunning,
		CreatedAt:       time.Now(),
	}))

	_, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.NotNil(t, nerr)
	assert.Equal(t, domain.CodeInternalError, nerr.Code)
	assert.Equal(t, 0, provider.executeCalls)
}

func TestExecuteReusesFailedPriorRow(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base"}
	svc, store := newTestService(t, provider)

	completed := time.Now()
	require.NoError(t, store.CreateLendingExecution(context.Background(), &domain.LendingExecution{
		ID:              "rec-1",
		NodeExecutionID: "ne-1",
		Status:          domain.StatusFailed,
		ErrorCode:       domain.CodeTimeout,
		ErrorMessage:    "timed out",
		CreatedAt:       time.Now(),
		CompletedAt:     &completed,
	}))

	result, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.Nil(t, nerr)
	assert.False(t, result.Replayed)

	record, err := store.GetLendingExecutionByNode(context.Background(), "ne-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
	assert.Equal(t, domain.StatusSuccess, record.Status)
	assert.Empty(t, record.ErrorCode)
	assert.Equal(t, 1, provider.executeCalls)
}

func TestProviderRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewProviderRegistry(
		&fakeProvider{name: "aave", chain: "base"},
		&fakeProvider{name: "aave", chain: "ethereum"},
	)
	assert.Error(t, err)
}

func TestReplayedOperationIsCounted(t *testing.T) {
	provider := &fakeProvider{name: "aave", chain: "base"}
	registry, err := NewProviderRegistry(provider)
	require.NoError(t, err)
	metrics := &recordingMetrics{}
	svc := NewService(registry, storagemem.NewStore(), metrics, zap.NewNop())

	_, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.Nil(t, nerr)

	second, nerr := svc.Execute(context.Background(), testRequest("ne-1"))
	require.Nil(t, nerr)
	require.True(t, second.Replayed)

	assert.Equal(t, []string{string(domain.StatusSuccess), replayedOutcome}, metrics.outcomes())
}
