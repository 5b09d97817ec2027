// Package coordinator implements the workflow execution engine.
//
// The coordinator turns a stored workflow definition into a sequence of node
// executions by:
//   - Validating workflow structure and dependencies
//   - Launching nodes once all their dependencies reach SUCCESS, running
//     independent branches concurrently
//   - Driving each node through the retryable state machine
//     (PENDING, RUNNING, SUCCESS, FAILED, CANCELLED, RETRYING,
//     WAITING_FOR_SIGNATURE)
//   - Persisting every status change before emitting its event
//
// Cancellation stops scheduling but never aborts an operation that is
// already in flight; a broadcast transaction is not revocable.
package coordinator
