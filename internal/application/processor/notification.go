package processor

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

var templateRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// NotificationProcessor delivers execution results to external channels.
// Destination URLs are stored encrypted and pass through the Encryptor
// capability on every send.
type NotificationProcessor struct {
	client    *resty.Client
	encryptor ports.Encryptor
	logger    *zap.Logger
}

// NewNotificationProcessor creates a notification node processor
func NewNotificationProcessor(client *resty.Client, encryptor ports.Encryptor, logger *zap.Logger) *NotificationProcessor {
	return &NotificationProcessor{client: client, encryptor: encryptor, logger: logger}
}

// NodeType returns the node type this processor handles
func (p *NotificationProcessor) NodeType() domain.NodeType {
	return domain.NodeTypeNotification
}

// Validate checks the notification node config
func (p *NotificationProcessor) Validate(node domain.Node) ports.ValidationResult {
	cfg := node.Config.Notification
	if cfg == nil {
		return ports.ValidationResult{Valid: false, Errors: []string{"notification config is required"}}
	}

	var errs []string
	switch cfg.Channel {
	case "webhook", "slack", "telegram":
	default:
		errs = append(errs, fmt.Sprintf("unknown channel %q", cfg.Channel))
	}
	if cfg.EncryptedURL == "" {
		errs = append(errs, "destination URL is required")
	}
	return ports.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Execute renders the message template against upstream outputs and posts it
// to the decrypted destination
func (p *NotificationProcessor) Execute(ctx context.Context, input ports.ProcessorInput) (out ports.ProcessorOutput) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("notification processor panic",
				zap.String("node_id", input.NodeID),
				zap.Any("panic", r))
			out = failure(input.NodeID, start, &domain.NodeError{
				Code:    domain.CodeInternalError,
				Message: fmt.Sprintf("processor panic: %v", r),
			})
		}
	}()

	if result := p.Validate(input.Node); !result.Valid {
		return failure(input.NodeID, start, &domain.NodeError{
			Code:    domain.CodeValidationError,
			Message: "invalid notification node config",
			Details: map[string]interface{}{"errors": result.Errors},
		})
	}
	cfg := input.Node.Config.Notification

	url, err := p.encryptor.Decrypt(cfg.EncryptedURL)
	if err != nil {
		return failure(input.NodeID, start, &domain.NodeError{
			Code:    domain.CodeValidationError,
			Message: "failed to decrypt destination URL",
		})
	}

	message := p.renderTemplate(cfg.MessageTemplate, input.Context)

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"execution_id": input.Context.ExecutionID,
			"node_id":      input.NodeID,
			"channel":      cfg.Channel,
			"message":      message,
		}).
		Post(url)
	if err != nil {
		return failure(input.NodeID, start, &domain.NodeError{
			Code:      domain.CodeProviderUnavailable,
			Message:   fmt.Sprintf("notification delivery failed: %v", err),
			Transient: true,
		})
	}
	if resp.IsError() {
		return failure(input.NodeID, start, &domain.NodeError{
			Code:      domain.CodeProviderUnavailable,
			Message:   fmt.Sprintf("notification endpoint returned %d", resp.StatusCode()),
			Transient: resp.StatusCode() >= 500,
		})
	}

	raw := map[string]interface{}{
		"channel":     cfg.Channel,
		"message":     message,
		"status_code": resp.StatusCode(),
	}
	return success(input.NodeID, start, ApplyMapping(input.Node.OutputMapping, raw))
}

// renderTemplate substitutes ${node.path} references with upstream output
// values. Unresolved references render as an empty string.
func (p *NotificationProcessor) renderTemplate(template string, execCtx ports.ExecutionContext) string {
	if template == "" {
		return ""
	}

	upstream := make(map[string]interface{}, len(execCtx.Upstream))
	for nodeID, output := range execCtx.Upstream {
		upstream[nodeID] = output
	}

	return templateRef.ReplaceAllStringFunc(template, func(ref string) string {
		path := templateRef.FindStringSubmatch(ref)[1]
		if value, ok := ResolvePath(upstream, path); ok {
			return fmt.Sprintf("%v", value)
		}
		return ""
	})
}
