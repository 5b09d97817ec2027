package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// TransformProcessor reshapes upstream outputs via dot-path mappings
type TransformProcessor struct{}

// NewTransformProcessor creates a transform node processor
func NewTransformProcessor() *TransformProcessor {
	return &TransformProcessor{}
}

// NodeType returns the node type this processor handles
func (p *TransformProcessor) NodeType() domain.NodeType {
	return domain.NodeTypeTransform
}

// Validate checks the transform node config
func (p *TransformProcessor) Validate(node domain.Node) ports.ValidationResult {
	cfg := node.Config.Transform
	if cfg == nil {
		return ports.ValidationResult{Valid: false, Errors: []string{"transform config is required"}}
	}
	if len(cfg.Mappings) == 0 {
		return ports.ValidationResult{Valid: false, Errors: []string{"at least one mapping is required"}}
	}
	return ports.ValidationResult{Valid: true}
}

// Execute resolves each mapping against the upstream outputs. Paths are
// prefixed with the dependency node id, e.g. "supply-node.tx_hash".
// Unresolved paths leave the key absent rather than failing the node.
func (p *TransformProcessor) Execute(ctx context.Context, input ports.ProcessorInput) (out ports.ProcessorOutput) {
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
			Message: "invalid transform node config",
			Details: map[string]interface{}{"errors": result.Errors},
		})
	}

	upstream := make(map[string]interface{}, len(input.Context.Upstream))
	for nodeID, output := range input.Context.Upstream {
		upstream[nodeID] = output
	}

	raw := ApplyMapping(input.Node.Config.Transform.Mappings, upstream)
	return success(input.NodeID, start, ApplyMapping(input.Node.OutputMapping, raw))
}
