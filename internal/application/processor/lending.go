package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/application/lending"
	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// DefaultSigningSecretName is the secret looked up when a lending node does
// not name one explicitly
const DefaultSigningSecretName = "WALLET_PRIVATE_KEY"

// LendingProcessor executes on-chain lending operation nodes through the
// lending execution service
type LendingProcessor struct {
	service *lending.Service
	logger  *zap.Logger
}

// NewLendingProcessor creates a lending node processor
func NewLendingProcessor(service *lending.Service, logger *zap.Logger) *LendingProcessor {
	return &LendingProcessor{service: service, logger: logger}
}

// NodeType returns the node type this processor handles
func (p *LendingProcessor) NodeType() domain.NodeType {
	return domain.NodeTypeLending
}

// Validate checks the lending node config without side effects
func (p *LendingProcessor) Validate(node domain.Node) ports.ValidationResult {
	cfg := node.Config.Lending
	if cfg == nil {
		return ports.ValidationResult{Valid: false, Errors: []string{"lending config is required"}}
	}

	var errs []string
	if cfg.Provider == "" {
		errs = append(errs, "provider is required")
	}
	if cfg.Chain == "" {
		errs = append(errs, "chain is required")
	}
	if !cfg.Operation.Valid() {
		errs = append(errs, fmt.Sprintf("unknown operation %q", cfg.Operation))
	}
	if cfg.Asset == "" {
		errs = append(errs, "asset address is required")
	}
	if cfg.WalletAddress == "" {
		errs = append(errs, "wallet address is required")
	}
	if cfg.Operation.RequiresAmount() && cfg.Amount == "" {
		errs = append(errs, fmt.Sprintf("amount is required for operation %q", cfg.Operation))
	}

	return ports.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Execute runs the lending operation. Internal failures come back as a
// structured error, never a panic across the boundary.
func (p *LendingProcessor) Execute(ctx context.Context, input ports.ProcessorInput) (out ports.ProcessorOutput) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("lending processor panic",
				zap.String("node_id", input.NodeID),
				zap.Any("panic", r))
			out = failure(input.NodeID, start, &domain.NodeError{
				Code:    domain.CodeInternalError,
				Message: fmt.Sprintf("processor panic: %v", r),
			})
		}
	}()

	if result := p.Validate(input.Node); !result.Valid {
		return failure(input.NodeID, start, &domain.NodeError{
			Code:    domain.CodeValidationError,
			Message: "invalid lending node config",
			Details: map[string]interface{}{"errors": result.Errors},
		})
	}
	cfg := input.Node.Config.Lending

	if cfg.ManualSign && !input.Context.SignatureConfirmed {
		return suspend(input.NodeID, start, ports.SignalAwaitSignature)
	}

	var signingKey string
	if !cfg.ManualSign {
		secretName := cfg.SecretName
		if secretName == "" {
			secretName = DefaultSigningSecretName
		}
		key, err := input.Secrets.Get(ctx, secretName)
		if err != nil {
			return failure(input.NodeID, start, &domain.NodeError{
				Code:    domain.CodeValidationError,
				Message: fmt.Sprintf("signing secret %q unavailable: %v", secretName, err),
			})
		}
		signingKey = key
	}

	result, nerr := p.service.Execute(ctx, lending.Request{
		NodeExecutionID: input.NodeExecutionID,
		Provider:        cfg.Provider,
		Operation: ports.OperationRequest{
			Chain:           cfg.Chain,
			WalletAddress:   cfg.WalletAddress,
			Operation:       cfg.Operation,
			Asset:           cfg.Asset,
			Amount:          cfg.Amount,
			RateMode:        cfg.RateMode,
			UseAsCollateral: cfg.UseAsCollateral,
		},
		SigningKey:     signingKey,
		SkipQuote:      cfg.SkipQuote,
		SkipSimulation: cfg.SkipSimulation,
	})
	if nerr != nil {
		return failure(input.NodeID, start, nerr)
	}

	raw := map[string]interface{}{
		"provider":     result.Record.Provider,
		"chain":        result.Record.Chain,
		"operation":    string(result.Record.Operation),
		"asset":        result.Record.Asset,
		"amount":       result.Record.Amount,
		"tx_hash":      result.Record.TxHash,
		"gas_used":     result.Record.GasUsed,
		"gas_price":    result.Record.GasPrice,
		"block_number": result.Record.BlockNumber,
		"replayed":     result.Replayed,
	}
	if result.Record.PostPosition != nil {
		raw["position"] = toMap(result.Record.PostPosition)
	}
	if result.Quote != nil {
		raw["quote"] = toMap(result.Quote)
	}

	return success(input.NodeID, start, ApplyMapping(input.Node.OutputMapping, raw))
}
