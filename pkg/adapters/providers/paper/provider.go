package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// Provider implements LendingProvider against an in-process simulated book.
// No chain is touched; positions live in memory. This is for development
// and testing only.
type Provider struct {
	mu        sync.Mutex
	positions map[string]*domain.Position // chain/wallet -> position
	block     uint64

	// FailSimulation forces Simulate to report a failed dry-run
	FailSimulation bool
	// FailExecution forces Execute to return an EXECUTION_REVERTED error
	FailExecution bool
	// Unavailable forces every call to return a transient outage
	Unavailable bool
}

// NewProvider creates a paper trading provider
func NewProvider() *Provider {
	return &Provider{
		positions: make(map[string]*domain.Position),
		block:     1,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "paper"
}

// SupportsChain accepts any chain; the book is purely local
func (p *Provider) SupportsChain(chain string) bool {
	return chain != ""
}

// ValidateConfig checks the request shape
func (p *Provider) ValidateConfig(ctx context.Context, req ports.OperationRequest) error {
	if p.Unavailable {
		return p.outage()
	}
	if req.Asset == "" {
		return domain.NewNodeError(domain.CodeValidationError, "asset is required")
	}
	if req.WalletAddress == "" {
		return domain.NewNodeError(domain.CodeValidationError, "wallet address is required")
	}
	if req.Operation.RequiresAmount() && req.Amount == "" {
		return domain.NewNodeError(domain.CodeValidationError,
			fmt.Sprintf("operation %s requires an amount", req.Operation))
	}
	return nil
}

// Quote returns synthetic rate data
func (p *Provider) Quote(ctx context.Context, req ports.OperationRequest) (*domain.Quote, error) {
	if p.Unavailable {
		return nil, p.outage()
	}
	return &domain.Quote{
		Asset:              req.Asset,
		SupplyAPY:          "3.12",
		BorrowAPY:          "4.87",
		AvailableLiquidity: "1000000",
		HealthFactorAfter:  "2.5",
		FetchedAt:          time.Now(),
	}, nil
}

// Simulate dry-runs the operation against the in-memory book
func (p *Provider) Simulate(ctx context.Context, req ports.OperationRequest) (*ports.SimulationResult, error) {
	if p.Unavailable {
		return nil, p.outage()
	}
	if p.FailSimulation {
		return &ports.SimulationResult{OK: false, Reason: "health factor below liquidation threshold"}, nil
	}
	return &ports.SimulationResult{OK: true, GasEstimate: 210000}, nil
}

// Execute applies the operation to the in-memory book and fabricates a
// receipt
func (p *Provider) Execute(ctx context.Context, req ports.OperationRequest, signingKey string) (*domain.TxResult, error) {
	if p.Unavailable {
		return nil, p.outage()
	}
	if signingKey == "" {
		return nil, domain.NewNodeError(domain.CodeValidationError, "signing key is required")
	}
	if p.FailExecution {
		return nil, domain.NewNodeError(domain.CodeExecutionReverted, "transaction reverted: paper book rejected operation")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.block++
	p.apply(req)

	return &domain.TxResult{
		TxHash:      fmt.Sprintf("0x%s", uuid.NewString()[:32]),
		GasUsed:     180000 + uint64(rand.Intn(40000)),
		GasPrice:    "25000000000",
		BlockNumber: p.block,
	}, nil
}

// Position returns the wallet's simulated account data
func (p *Provider) Position(ctx context.Context, chain, walletAddress string) (*domain.Position, error) {
	if p.Unavailable {
		return nil, p.outage()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	position, ok := p.positions[positionKey(chain, walletAddress)]
	if !ok {
		position = &domain.Position{
			Provider:            p.Name(),
			Chain:               chain,
			WalletAddress:       walletAddress,
			TotalCollateralUSD:  "0",
			TotalDebtUSD:        "0",
			AvailableBorrowsUSD: "0",
			HealthFactor:        "0",
		}
	}
	copied := *position
	copied.FetchedAt = time.Now()
	return &copied, nil
}

// apply mutates the book. Amounts are opaque strings upstream, so the paper
// book only tracks reserve membership and collateral flags, not balances.
func (p *Provider) apply(req ports.OperationRequest) {
	key := positionKey(req.Chain, req.WalletAddress)
	position, ok := p.positions[key]
	if !ok {
		position = &domain.Position{
			Provider:            p.Name(),
			Chain:               req.Chain,
			WalletAddress:       req.WalletAddress,
			TotalCollateralUSD:  "0",
			TotalDebtUSD:        "0",
			AvailableBorrowsUSD: "0",
			HealthFactor:        "99",
		}
		p.positions[key] = position
	}

	var reserve *domain.ReserveStatus
	for i := range position.Reserves {
		if position.Reserves[i].Asset == req.Asset {
			reserve = &position.Reserves[i]
			break
		}
	}
	if reserve == nil {
		position.Reserves = append(position.Reserves, domain.ReserveStatus{Asset: req.Asset})
		reserve = &position.Reserves[len(position.Reserves)-1]
	}

	switch req.Operation {
	case domain.OperationSupply:
		reserve.Supplied = req.Amount
		reserve.UseAsCollateral = true
	case domain.OperationWithdraw:
		reserve.Supplied = ""
	case domain.OperationBorrow:
		reserve.Borrowed = req.Amount
	case domain.OperationRepay:
		reserve.Borrowed = ""
	case domain.OperationSetCollateral:
		reserve.UseAsCollateral = req.UseAsCollateral
	}
}

func (p *Provider) outage() *domain.NodeError {
	return &domain.NodeError{
		Code:      domain.CodeProviderUnavailable,
		Message:   "paper provider unavailable",
		Transient: true,
	}
}

func positionKey(chain, wallet string) string {
	return chain + "/" + wallet
}
