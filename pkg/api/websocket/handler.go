package websocket

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/application/broadcast"
	"github.com/loopfi/conductor/internal/application/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Authorization is the subscription token, not the origin
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	broadcaster *broadcast.Broadcaster
	tokens      *token.Service
	logger      *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(broadcaster *broadcast.Broadcaster, tokens *token.Service, logger *zap.Logger) *Handler {
	return &Handler{
		broadcaster: broadcaster,
		tokens:      tokens,
		logger:      logger,
	}
}

// HandleExecutionStream streams execution events for a specific execution.
// The subscription token travels as a query parameter, same as the SSE
// endpoint.
func (h *Handler) HandleExecutionStream(c *gin.Context) {
	executionID := c.Param("id")

	if _, err := h.tokens.Verify(executionID, c.Query("token")); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, token.ErrExecutionMismatch) {
			status = http.StatusForbidden
		}
		c.AbortWithStatus(status)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("execution_id", executionID),
		zap.String("client", c.ClientIP()))

	sub := h.broadcaster.Subscribe(executionID)
	defer sub.Close()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
