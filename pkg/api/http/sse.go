package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
)

// heartbeatInterval keeps intermediaries from closing idle stream
// connections
const heartbeatInterval = 15 * time.Second

// handleStream serves the Server-Sent Events feed for one execution. The
// endpoint authenticates with a subscription token passed as a query
// parameter; browser EventSource clients cannot set headers.
func (s *Server) handleStream(c *gin.Context) {
	executionID := c.Param("id")

	if !s.verifyStreamToken(c, executionID) {
		return
	}

	if _, err := s.coordinator.GetExecution(c.Request.Context(), executionID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Execution not found",
			},
		})
		return
	}

	sub := s.broadcaster.Subscribe(executionID)
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	s.logger.Debug("stream attached", zap.String("execution_id", executionID))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSE(c, event); err != nil {
				return
			}
			if isTerminalEvent(event.Type) {
				return
			}
		case <-heartbeat.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// writeSSE writes one event in text/event-stream framing
func writeSSE(c *gin.Context, event domain.ExecutionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("event: " + string(event.Type) + "\n"); err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// isTerminalEvent reports whether the event ends the execution, after which
// the stream has nothing more to deliver
func isTerminalEvent(t domain.EventType) bool {
	switch t {
	case domain.EventTypeExecutionSucceeded,
		domain.EventTypeExecutionFailed,
		domain.EventTypeExecutionCancelled:
		return true
	}
	return false
}
