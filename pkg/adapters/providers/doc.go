// Package providers provides lending protocol adapters.
//
// Implementations:
//   - aave: Aave v3 via a REST transaction gateway
//   - paper: In-memory simulated book for development and testing
package providers
