package domain

import "fmt"

// ErrorCode classifies node and lending operation failures
type ErrorCode string

const (
	CodeValidationError     ErrorCode = "VALIDATION_ERROR"
	CodeSimulationFailed    ErrorCode = "SIMULATION_FAILED"
	CodeExecutionReverted   ErrorCode = "EXECUTION_REVERTED"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeSignatureTimeout    ErrorCode = "SIGNATURE_TIMEOUT"
	CodeSignatureRejected   ErrorCode = "SIGNATURE_REJECTED"
	CodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// NodeError is the structured failure shape processors return across the
// coordinator boundary. Processors never panic or leak raw errors; every
// internal failure is normalized into this type.
type NodeError struct {
	Message string                 `json:"message"`
	Code    ErrorCode              `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`

	// Transient marks a PROVIDER_UNAVAILABLE failure as retry-eligible.
	// A (provider, chain) pair that is not registered at all is not
	// transient and must not be retried.
	Transient bool `json:"transient,omitempty"`
}

// Error implements the error interface
func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the coordinator may schedule a retry for this
// error. Only timeouts and transient provider outages qualify; validation
// failures and reverted executions are terminal on first occurrence.
func (e *NodeError) Retryable() bool {
	switch e.Code {
	case CodeTimeout:
		return true
	case CodeProviderUnavailable:
		return e.Transient
	}
	return false
}

// NewNodeError builds a NodeError with the given code and message
func NewNodeError(code ErrorCode, message string) *NodeError {
	return &NodeError{Code: code, Message: message}
}
