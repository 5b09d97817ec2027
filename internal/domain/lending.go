package domain

import "time"

// Operation is the kind of on-chain lending action
type Operation string

const (
	OperationSupply        Operation = "supply"
	OperationBorrow        Operation = "borrow"
	OperationWithdraw      Operation = "withdraw"
	OperationRepay         Operation = "repay"
	OperationSetCollateral Operation = "set_collateral"
)

// Valid returns true for a known operation kind
func (o Operation) Valid() bool {
	switch o {
	case OperationSupply, OperationBorrow, OperationWithdraw, OperationRepay, OperationSetCollateral:
		return true
	}
	return false
}

// RequiresAmount reports whether the operation needs a non-empty amount.
// Collateral toggles act on the whole reserve and carry no amount.
func (o Operation) RequiresAmount() bool {
	return o != OperationSetCollateral
}

// RateMode selects the interest rate mode for borrow/repay
type RateMode string

const (
	RateModeVariable RateMode = "variable"
	RateModeStable   RateMode = "stable"
)

// LendingExecution is the durable audit row for one attempted on-chain
// operation. NodeExecutionID is the idempotency key: at most one row may
// exist per node execution, which is what prevents a coordinator retry from
// broadcasting the same transaction twice.
type LendingExecution struct {
	ID              string          `json:"id"`
	NodeExecutionID string          `json:"node_execution_id"`
	Provider        string          `json:"provider"`
	Chain           string          `json:"chain"`
	WalletAddress   string          `json:"wallet_address"`
	Operation       Operation       `json:"operation"`
	Asset           string          `json:"asset"`
	Amount          string          `json:"amount,omitempty"`
	RateMode        RateMode        `json:"rate_mode,omitempty"`
	TxHash          string          `json:"tx_hash,omitempty"`
	GasUsed         uint64          `json:"gas_used,omitempty"`
	GasPrice        string          `json:"gas_price,omitempty"`
	BlockNumber     uint64          `json:"block_number,omitempty"`
	Status          ExecutionStatus `json:"status"`
	ErrorCode       ErrorCode       `json:"error_code,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	PrePosition     *Position       `json:"pre_position,omitempty"`
	PostPosition    *Position       `json:"post_position,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// Position is a snapshot of a wallet's account data on a lending protocol
type Position struct {
	Provider            string          `json:"provider"`
	Chain               string          `json:"chain"`
	WalletAddress       string          `json:"wallet_address"`
	TotalCollateralUSD  string          `json:"total_collateral_usd"`
	TotalDebtUSD        string          `json:"total_debt_usd"`
	AvailableBorrowsUSD string          `json:"available_borrows_usd"`
	HealthFactor        string          `json:"health_factor"`
	Reserves            []ReserveStatus `json:"reserves,omitempty"`
	FetchedAt           time.Time       `json:"fetched_at"`
}

// ReserveStatus is one asset entry inside a position
type ReserveStatus struct {
	Asset           string `json:"asset"`
	Supplied        string `json:"supplied,omitempty"`
	Borrowed        string `json:"borrowed,omitempty"`
	UseAsCollateral bool   `json:"use_as_collateral"`
	SupplyAPY       string `json:"supply_apy,omitempty"`
	BorrowAPY       string `json:"borrow_apy,omitempty"`
}

// Quote is advisory rate and liquidity data fetched before an operation
type Quote struct {
	Asset              string    `json:"asset"`
	SupplyAPY          string    `json:"supply_apy,omitempty"`
	BorrowAPY          string    `json:"borrow_apy,omitempty"`
	AvailableLiquidity string    `json:"available_liquidity,omitempty"`
	HealthFactorAfter  string    `json:"health_factor_after,omitempty"`
	FetchedAt          time.Time `json:"fetched_at"`
}

// TxResult carries the receipt of a broadcast transaction
type TxResult struct {
	TxHash      string `json:"tx_hash"`
	GasUsed     uint64 `json:"gas_used"`
	GasPrice    string `json:"gas_price"`
	BlockNumber uint64 `json:"block_number"`
}
