package ports

import (
	"context"

	"github.com/loopfi/conductor/internal/domain"
)

// OperationRequest is the provider-facing description of one lending
// operation
type OperationRequest struct {
	Chain           string
	WalletAddress   string
	Operation       domain.Operation
	Asset           string
	Amount          string
	RateMode        domain.RateMode
	UseAsCollateral bool
}

// SimulationResult is the outcome of a dry-run
type SimulationResult struct {
	OK          bool
	Reason      string
	GasEstimate uint64
}

// LendingProvider is a protocol/chain adapter exposing the lending operation
// capability set. Implementations are registered once at startup; the
// registry is immutable afterwards.
type LendingProvider interface {
	Name() string
	SupportsChain(chain string) bool

	// ValidateConfig checks the request against protocol constraints without
	// touching the chain
	ValidateConfig(ctx context.Context, req OperationRequest) error

	// Quote fetches current rate, liquidity, and health-factor impact.
	// Advisory only, never binding.
	Quote(ctx context.Context, req OperationRequest) (*domain.Quote, error)

	// Simulate dry-runs the transaction without broadcasting
	Simulate(ctx context.Context, req OperationRequest) (*SimulationResult, error)

	// Execute builds, signs with the supplied key, broadcasts, and blocks
	// until receipt or timeout
	Execute(ctx context.Context, req OperationRequest, signingKey string) (*domain.TxResult, error)

	// Position re-queries the wallet's account data on the protocol
	Position(ctx context.Context, chain, walletAddress string) (*domain.Position, error)
}
