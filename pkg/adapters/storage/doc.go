// Package storage provides persistence implementations for workflows,
// executions and lending records.
//
// Implementations:
//   - redis: Redis with JSON serialization and per-key TTL
//   - memory: In-memory for testing
package storage
