// Package ports defines the interfaces between the application core and its
// adapters.
//
// Ports:
//   - ExecutionStore / WorkflowStore / LendingStore: persistence
//   - EventBus: execution event transport
//   - LendingProvider: protocol/chain adapters
//   - NodeProcessor: per-node-type executors
//   - SecretSource / Encryptor: secret handling
//   - MetricsCollector: operational metrics
package ports
