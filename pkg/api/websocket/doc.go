// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/executions/:id/ws with a subscription
// token to receive real-time updates about workflow execution.
package websocket
