package aave

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// supportedChains are the networks the gateway can reach
var supportedChains = map[string]bool{
	"ethereum": true,
	"polygon":  true,
	"arbitrum": true,
	"base":     true,
}

// Provider implements LendingProvider against an Aave v3 transaction gateway.
// The gateway owns RPC access and transaction construction; this adapter
// speaks its REST API and maps failures onto the engine's error taxonomy.
type Provider struct {
	client *resty.Client
	logger *zap.Logger
}

type gatewayError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type simulateResponse struct {
	OK          bool   `json:"ok"`
	Reason      string `json:"reason,omitempty"`
	GasEstimate uint64 `json:"gas_estimate,omitempty"`
}

type executeResponse struct {
	TxHash      string `json:"tx_hash"`
	GasUsed     uint64 `json:"gas_used"`
	GasPrice    string `json:"gas_price"`
	BlockNumber uint64 `json:"block_number"`
}

// NewProvider creates an Aave provider backed by the gateway at baseURL
func NewProvider(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Provider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &Provider{
		client: client,
		logger: logger,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "aave"
}

// SupportsChain reports whether the gateway serves the chain
func (p *Provider) SupportsChain(chain string) bool {
	return supportedChains[chain]
}

// ValidateConfig checks the request against protocol constraints via the
// gateway, without touching the chain
func (p *Provider) ValidateConfig(ctx context.Context, req ports.OperationRequest) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(operationBody(req)).
		SetError(&gatewayError{}).
		Post("/v1/validate")
	if err != nil {
		return p.transportError("validate", err)
	}
	if resp.IsError() {
		return p.gatewayFailure(resp, domain.CodeValidationError)
	}
	return nil
}

// Quote fetches current rate and liquidity data. Advisory only.
func (p *Provider) Quote(ctx context.Context, req ports.OperationRequest) (*domain.Quote, error) {
	var quote domain.Quote
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chain":     req.Chain,
			"asset":     req.Asset,
			"operation": string(req.Operation),
			"amount":    req.Amount,
			"wallet":    req.WalletAddress,
		}).
		SetResult(&quote).
		SetError(&gatewayError{}).
		Get("/v1/quote")
	if err != nil {
		return nil, p.transportError("quote", err)
	}
	if resp.IsError() {
		return nil, p.gatewayFailure(resp, domain.CodeProviderUnavailable)
	}

	quote.FetchedAt = time.Now()
	return &quote, nil
}

// Simulate dry-runs the transaction on the gateway without broadcasting
func (p *Provider) Simulate(ctx context.Context, req ports.OperationRequest) (*ports.SimulationResult, error) {
	var result simulateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(operationBody(req)).
		SetResult(&result).
		SetError(&gatewayError{}).
		Post("/v1/simulate")
	if err != nil {
		return nil, p.transportError("simulate", err)
	}
	if resp.IsError() {
		return nil, p.gatewayFailure(resp, domain.CodeProviderUnavailable)
	}

	return &ports.SimulationResult{
		OK:          result.OK,
		Reason:      result.Reason,
		GasEstimate: result.GasEstimate,
	}, nil
}

// Execute builds, signs, and broadcasts the transaction through the gateway,
// blocking until receipt or timeout. The signing key travels only inside
// this request body and is never logged.
func (p *Provider) Execute(ctx context.Context, req ports.OperationRequest, signingKey string) (*domain.TxResult, error) {
	body := operationBody(req)
	body["signing_key"] = signingKey

	var result executeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&gatewayError{}).
		Post("/v1/execute")
	if err != nil {
		return nil, p.transportError("execute", err)
	}
	if resp.IsError() {
		return nil, p.gatewayFailure(resp, domain.CodeExecutionReverted)
	}

	p.logger.Info("transaction confirmed",
		zap.String("chain", req.Chain),
		zap.String("operation", string(req.Operation)),
		zap.String("tx_hash", result.TxHash),
		zap.Uint64("block_number", result.BlockNumber))

	return &domain.TxResult{
		TxHash:      result.TxHash,
		GasUsed:     result.GasUsed,
		GasPrice:    result.GasPrice,
		BlockNumber: result.BlockNumber,
	}, nil
}

// Position re-queries the wallet's account data on the protocol
func (p *Provider) Position(ctx context.Context, chain, walletAddress string) (*domain.Position, error) {
	var position domain.Position
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chain":  chain,
			"wallet": walletAddress,
		}).
		SetResult(&position).
		SetError(&gatewayError{}).
		Get("/v1/position")
	if err != nil {
		return nil, p.transportError("position", err)
	}
	if resp.IsError() {
		return nil, p.gatewayFailure(resp, domain.CodeProviderUnavailable)
	}

	position.Provider = p.Name()
	position.Chain = chain
	position.WalletAddress = walletAddress
	position.FetchedAt = time.Now()
	return &position, nil
}

// transportError maps connection failures onto the taxonomy. The gateway
// being unreachable is a transient outage, not a protocol rejection.
func (p *Provider) transportError(operation string, err error) *domain.NodeError {
	p.logger.Warn("gateway request failed",
		zap.String("operation", operation),
		zap.Error(err))
	return &domain.NodeError{
		Code:      domain.CodeProviderUnavailable,
		Message:   fmt.Sprintf("aave gateway %s request failed: %v", operation, err),
		Transient: true,
	}
}

// gatewayFailure maps an HTTP error response onto the taxonomy. 5xx means
// the gateway itself is degraded and the call may be retried; 4xx carries
// the gateway's own classification.
func (p *Provider) gatewayFailure(resp *resty.Response, fallback domain.ErrorCode) *domain.NodeError {
	if resp.StatusCode() >= 500 {
		return &domain.NodeError{
			Code:      domain.CodeProviderUnavailable,
			Message:   fmt.Sprintf("aave gateway returned %d", resp.StatusCode()),
			Transient: true,
		}
	}

	nerr := &domain.NodeError{
		Code:    fallback,
		Message: fmt.Sprintf("aave gateway rejected request with %d", resp.StatusCode()),
	}
	if gwErr, ok := resp.Error().(*gatewayError); ok && gwErr.Error.Message != "" {
		nerr.Message = gwErr.Error.Message
		switch gwErr.Error.Code {
		case "VALIDATION_ERROR":
			nerr.Code = domain.CodeValidationError
		case "EXECUTION_REVERTED":
			nerr.Code = domain.CodeExecutionReverted
		case "SIMULATION_FAILED":
			nerr.Code = domain.CodeSimulationFailed
		}
	}
	return nerr
}

func operationBody(req ports.OperationRequest) map[string]interface{} {
	body := map[string]interface{}{
		"chain":     req.Chain,
		"wallet":    req.WalletAddress,
		"operation": string(req.Operation),
		"asset":     req.Asset,
	}
	if req.Amount != "" {
		body["amount"] = req.Amount
	}
	if req.RateMode != "" {
		body["rate_mode"] = string(req.RateMode)
	}
	if req.Operation == domain.OperationSetCollateral {
		body["use_as_collateral"] = req.UseAsCollateral
	}
	return body
}
