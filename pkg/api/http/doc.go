// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Workflow registration and execution control
//   - Execution and node status queries
//   - Subscription token issuance and the SSE event stream
//   - Health checks
//   - Prometheus metrics
package http
