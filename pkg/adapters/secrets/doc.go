// Package secrets provides secret source implementations.
//
// Implementations:
//   - env: Environment variables under the CONDUCTOR_SECRET_ prefix
package secrets
