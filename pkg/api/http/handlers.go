package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/application/token"
	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// StartExecutionRequest represents an execution start request
type StartExecutionRequest struct {
	Trigger map[string]interface{} `json:"trigger"`
}

// StartExecutionResponse represents an execution start response
type StartExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at"`
}

// SignatureRequest carries the user's decision for a node waiting on a
// manual signature
type SignatureRequest struct {
	Confirmed bool `json:"confirmed"`
}

// TokenResponse represents an issued subscription token
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRegisterWorkflow handles workflow registration
func (s *Server) handleRegisterWorkflow(c *gin.Context) {
	var workflow domain.Workflow
	if err := c.ShouldBindJSON(&workflow); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	if err := s.coordinator.RegisterWorkflow(c.Request.Context(), &workflow); err != nil {
		s.logger.Warn("workflow registration rejected", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    string(domain.CodeValidationError),
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"workflow_id": workflow.ID,
		"status":      "registered",
	})
}

// handleStartExecution handles starting a workflow execution
func (s *Server) handleStartExecution(c *gin.Context) {
	workflowID := c.Param("id")

	var req StartExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	executionID, err := s.coordinator.StartExecution(c.Request.Context(), workflowID, req.Trigger)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "Workflow not found",
				},
			})
			return
		}
		s.logger.Error("failed to start execution",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    string(domain.CodeValidationError),
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, StartExecutionResponse{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Status:      string(domain.StatusPending),
		StartedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetExecution returns the last persisted execution state
func (s *Server) handleGetExecution(c *gin.Context) {
	executionID := c.Param("id")

	execution, err := s.coordinator.GetExecution(c.Request.Context(), executionID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Execution not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, execution)
}

// handleListNodeExecutions returns the per-node history of an execution
func (s *Server) handleListNodeExecutions(c *gin.Context) {
	executionID := c.Param("id")

	if _, err := s.coordinator.GetExecution(c.Request.Context(), executionID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Execution not found",
			},
		})
		return
	}

	nodes, err := s.coordinator.ListNodeExecutions(c.Request.Context(), executionID)
	if err != nil {
		s.logger.Error("failed to list node executions",
			zap.String("execution_id", executionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    string(domain.CodeInternalError),
				Message: "Failed to retrieve node executions",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution_id": executionID,
		"nodes":        nodes,
	})
}

// handleCancelExecution handles execution cancellation
func (s *Server) handleCancelExecution(c *gin.Context) {
	executionID := c.Param("id")

	if err := s.coordinator.Cancel(c.Request.Context(), executionID); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution_id": executionID,
		"status":       string(domain.StatusCancelled),
		"cancelled_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleResolveSignature confirms or rejects a node suspended in
// WAITING_FOR_SIGNATURE
func (s *Server) handleResolveSignature(c *gin.Context) {
	executionID := c.Param("id")
	nodeID := c.Param("nodeId")

	var req SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	if err := s.coordinator.ResolveSignature(c.Request.Context(), executionID, nodeID, req.Confirmed); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SIGNATURE_RESOLUTION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	status := "rejected"
	if req.Confirmed {
		status = "confirmed"
	}
	c.JSON(http.StatusOK, gin.H{
		"execution_id": executionID,
		"node_id":      nodeID,
		"signature":    status,
	})
}

// handleIssueToken mints a subscription token scoped to the execution and
// the requesting user. The caller authenticates with its ordinary session
// credentials; the returned token is what the stream endpoint accepts.
func (s *Server) handleIssueToken(c *gin.Context) {
	executionID := c.Param("id")

	if _, err := s.coordinator.GetExecution(c.Request.Context(), executionID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Execution not found",
			},
		})
		return
	}

	signed, expiresAt, err := s.tokens.Issue(executionID, userID(c))
	if err != nil {
		s.logger.Error("failed to issue subscription token",
			zap.String("execution_id", executionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    string(domain.CodeInternalError),
				Message: "Failed to issue token",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// verifyStreamToken checks the token query parameter against the execution
// and writes the error response itself on failure
func (s *Server) verifyStreamToken(c *gin.Context, executionID string) bool {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: ErrorDetail{
				Code:    "TOKEN_REQUIRED",
				Message: "Subscription token is required",
			},
		})
		return false
	}

	if _, err := s.tokens.Verify(executionID, tokenString); err != nil {
		code := "TOKEN_INVALID"
		switch {
		case errors.Is(err, token.ErrTokenExpired):
			code = "TOKEN_EXPIRED"
		case errors.Is(err, token.ErrExecutionMismatch):
			code = "TOKEN_SCOPE_MISMATCH"
		}
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: err.Error(),
			},
		})
		return false
	}
	return true
}
