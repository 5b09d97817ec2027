// Package lending implements the financial operation pipeline used by every
// node that performs a monetary on-chain action.
//
// The pipeline runs validate -> quote -> simulate -> execute -> record ->
// reposition against a provider resolved from an immutable (provider, chain)
// registry. The node execution id is the idempotency key: a retry that finds
// a prior successful record returns it instead of broadcasting again.
package lending
