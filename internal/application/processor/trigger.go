package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// TriggerProcessor handles workflow entry nodes. It passes the trigger input
// through so downstream nodes can reference it by dot-path.
type TriggerProcessor struct{}

// NewTriggerProcessor creates a trigger node processor
func NewTriggerProcessor() *TriggerProcessor {
	return &TriggerProcessor{}
}

// NodeType returns the node type this processor handles
func (p *TriggerProcessor) NodeType() domain.NodeType {
	return domain.NodeTypeTrigger
}

// Validate checks the trigger node config
func (p *TriggerProcessor) Validate(node domain.Node) ports.ValidationResult {
	cfg := node.Config.Trigger
	if cfg == nil {
		return ports.ValidationResult{Valid: false, Errors: []string{"trigger config is required"}}
	}
	switch cfg.Kind {
	case "manual", "schedule", "webhook":
		return ports.ValidationResult{Valid: true}
	}
	return ports.ValidationResult{
		Valid:  false,
		Errors: []string{fmt.Sprintf("unknown trigger kind %q", cfg.Kind)},
	}
}

// Execute surfaces the trigger input as the node output
func (p *TriggerProcessor) Execute(ctx context.Context, input ports.ProcessorInput) (out ports.ProcessorOutput) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = failure(input.NodeID, start, &domain.NodeError{
				Code:    domain.CodeInternalError,
				Message: fmt.Sprintf("processor panic: %v", r),
			})
		}
	}()

	if result := p.Validate(input.Node); !result.Valid {
		return failure(input.NodeID, start, &domain.NodeError{
			Code:    domain.CodeValidationError,
			Message: "invalid trigger node config",
			Details: map[string]interface{}{"errors": result.Errors},
		})
	}

	raw := map[string]interface{}{
		"kind":    input.Node.Config.Trigger.Kind,
		"trigger": input.Context.Trigger,
	}
	return success(input.NodeID, start, ApplyMapping(input.Node.OutputMapping, raw))
}
