package lending

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// replayedOutcome labels metrics for operations answered from a prior
// successful record instead of a new broadcast
const replayedOutcome = "REPLAYED"

// Service runs the lending operation pipeline:
// validate -> quote -> simulate -> execute -> record -> reposition.
// Quote and simulate are individually skippable; validate and execute are not.
type Service struct {
	registry *ProviderRegistry
	store    ports.LendingStore
	metrics  ports.MetricsCollector
	logger   *zap.Logger
}

// NewService creates a lending execution service
func NewService(registry *ProviderRegistry, store ports.LendingStore, metrics ports.MetricsCollector, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// Request describes one lending operation tied to a node execution
type Request struct {
	// NodeExecutionID is the idempotency key: at most one lending execution
	// row exists per node execution
	NodeExecutionID string

	Provider  string
	Operation ports.OperationRequest

	// SigningKey is supplied per invocation and never stored
	SigningKey string

	SkipQuote      bool
	SkipSimulation bool
}

// Result is the pipeline outcome
type Result struct {
	Record *domain.LendingExecution
	Quote  *domain.Quote

	// Replayed is true when a prior successful record for the same node
	// execution short-circuited the pipeline
	Replayed bool
}

// Execute runs the full pipeline for one operation. A retry with the same
// NodeExecutionID whose prior attempt succeeded returns the recorded result
// without a second broadcast.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, *domain.NodeError) {
	start := time.Now()

	provider, nerr := s.registry.Resolve(req.Provider, req.Operation.Chain)
	if nerr != nil {
		s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), string(domain.StatusFailed), time.Since(start))
		return nil, nerr
	}

	// Replay check before anything touches the chain.
	if prior, err := s.store.GetLendingExecutionByNode(ctx, req.NodeExecutionID); err == nil {
		if prior.Status == domain.StatusSuccess {
			s.logger.Info("lending operation replayed from prior record",
				zap.String("node_execution_id", req.NodeExecutionID),
				zap.String("tx_hash", prior.TxHash))
			s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), replayedOutcome, time.Since(start))
			return &Result{Record: prior, Replayed: true}, nil
		}
	} else if !errors.Is(err, ports.ErrNotFound) {
		return nil, s.persistenceError(err)
	}

	if err := provider.ValidateConfig(ctx, req.Operation); err != nil {
		s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), string(domain.StatusFailed), time.Since(start))
		return nil, &domain.NodeError{
			Code:    domain.CodeValidationError,
			Message: err.Error(),
		}
	}

	record, replayed, nerr := s.claimRecord(ctx, req)
	if nerr != nil {
		return nil, nerr
	}
	if replayed {
		s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), replayedOutcome, time.Since(start))
		return &Result{Record: record, Replayed: true}, nil
	}

	result := &Result{Record: record}

	if !req.SkipQuote {
		quote, err := provider.Quote(ctx, req.Operation)
		if err != nil {
			// Quotes are advisory; a failed quote never blocks the operation.
			s.logger.Warn("quote fetch failed",
				zap.String("provider", req.Provider),
				zap.String("asset", req.Operation.Asset),
				zap.Error(err))
		} else {
			result.Quote = quote
		}
	}

	if pre, err := provider.Position(ctx, req.Operation.Chain, req.Operation.WalletAddress); err == nil {
		record.PrePosition = pre
	} else {
		s.logger.Warn("pre-operation position fetch failed",
			zap.String("wallet", req.Operation.WalletAddress),
			zap.Error(err))
	}

	if !req.SkipSimulation {
		sim, err := provider.Simulate(ctx, req.Operation)
		if err != nil {
			nerr := s.classify(err)
			s.finishRecord(ctx, record, domain.StatusFailed, nerr)
			s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), string(domain.StatusFailed), time.Since(start))
			return nil, nerr
		}
		if !sim.OK {
			nerr := &domain.NodeError{
				Code:    domain.CodeSimulationFailed,
				Message: sim.Reason,
				Details: map[string]interface{}{"gas_estimate": sim.GasEstimate},
			}
			s.finishRecord(ctx, record, domain.StatusFailed, nerr)
			s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), string(domain.StatusFailed), time.Since(start))
			return nil, nerr
		}
	}

	record.Status = domain.StatusRunning
	if err := s.store.UpdateLendingExecution(ctx, record); err != nil {
		return nil, s.persistenceError(err)
	}

	tx, err := provider.Execute(ctx, req.Operation, req.SigningKey)
	if err != nil {
		nerr := s.classify(err)
		s.finishRecord(ctx, record, domain.StatusFailed, nerr)
		s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), string(domain.StatusFailed), time.Since(start))
		return nil, nerr
	}

	record.TxHash = tx.TxHash
	record.GasUsed = tx.GasUsed
	record.GasPrice = tx.GasPrice
	record.BlockNumber = tx.BlockNumber

	if post, err := provider.Position(ctx, req.Operation.Chain, req.Operation.WalletAddress); err == nil {
		record.PostPosition = post
	} else {
		s.logger.Warn("post-operation position fetch failed",
			zap.String("wallet", req.Operation.WalletAddress),
			zap.Error(err))
	}

	if nerr := s.finishRecord(ctx, record, domain.StatusSuccess, nil); nerr != nil {
		return nil, nerr
	}

	s.metrics.RecordLendingOperation(req.Provider, string(req.Operation.Operation), string(domain.StatusSuccess), time.Since(start))
	s.logger.Info("lending operation executed",
		zap.String("provider", req.Provider),
		zap.String("operation", string(req.Operation.Operation)),
		zap.String("tx_hash", tx.TxHash),
		zap.String("node_execution_id", req.NodeExecutionID))

	return result, nil
}

// claimRecord atomically claims the node execution id by inserting the
// pending audit row. A lost race against a concurrent retry re-reads the
// winner's row instead of creating a second one.
func (s *Service) claimRecord(ctx context.Context, req Request) (*domain.LendingExecution, bool, *domain.NodeError) {
	record := &domain.LendingExecution{
		ID:              uuid.New().String(),
		NodeExecutionID: req.NodeExecutionID,
		Provider:        req.Provider,
		Chain:           req.Operation.Chain,
		WalletAddress:   req.Operation.WalletAddress,
		Operation:       req.Operation.Operation,
		Asset:           req.Operation.Asset,
		Amount:          req.Operation.Amount,
		RateMode:        req.Operation.RateMode,
		Status:          domain.StatusPending,
		CreatedAt:       time.Now(),
	}

	err := s.store.CreateLendingExecution(ctx, record)
	if err == nil {
		return record, false, nil
	}
	if !errors.Is(err, ports.ErrDuplicateOperation) {
		return nil, false, s.persistenceError(err)
	}

	prior, getErr := s.store.GetLendingExecutionByNode(ctx, req.NodeExecutionID)
	if getErr != nil {
		return nil, false, s.persistenceError(getErr)
	}
	if prior.Status == domain.StatusSuccess {
		return prior, true, nil
	}
	if !prior.Status.IsTerminal() {
		return nil, false, &domain.NodeError{
			Code:    domain.CodeInternalError,
			Message: "lending operation already in progress for node execution",
			Details: map[string]interface{}{"node_execution_id": req.NodeExecutionID},
		}
	}

	// Prior attempt failed before broadcasting; reuse its row for the retry.
	prior.Status = domain.StatusPending
	prior.ErrorCode = ""
	prior.ErrorMessage = ""
	prior.CompletedAt = nil
	if err := s.store.UpdateLendingExecution(ctx, prior); err != nil {
		return nil, false, s.persistenceError(err)
	}
	return prior, false, nil
}

// finishRecord moves the audit row to a terminal status. A failed status
// write is surfaced, never swallowed.
func (s *Service) finishRecord(ctx context.Context, record *domain.LendingExecution, status domain.ExecutionStatus, nerr *domain.NodeError) *domain.NodeError {
	now := time.Now()
	record.Status = status
	record.CompletedAt = &now
	if nerr != nil {
		record.ErrorCode = nerr.Code
		record.ErrorMessage = nerr.Message
	}

	if err := s.store.UpdateLendingExecution(ctx, record); err != nil {
		s.logger.Error("failed to persist lending execution record",
			zap.String("node_execution_id", record.NodeExecutionID),
			zap.Error(err))
		return s.persistenceError(err)
	}
	return nil
}

// classify maps a provider error to the operation error taxonomy
func (s *Service) classify(err error) *domain.NodeError {
	var nerr *domain.NodeError
	if errors.As(err, &nerr) {
		return nerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.NodeError{
			Code:    domain.CodeTimeout,
			Message: "operation timed out waiting for receipt",
		}
	}
	return &domain.NodeError{
		Code:      domain.CodeProviderUnavailable,
		Message:   err.Error(),
		Transient: true,
	}
}

func (s *Service) persistenceError(err error) *domain.NodeError {
	return &domain.NodeError{
		Code:    domain.CodeInternalError,
		Message: "persistence failure: " + err.Error(),
	}
}
