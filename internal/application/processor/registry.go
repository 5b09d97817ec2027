package processor

import (
	"fmt"

	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

// Registry maps node types to their processors. It is built once at startup
// and read-only afterwards; there is no runtime registration.
type Registry struct {
	processors map[domain.NodeType]ports.NodeProcessor
}

// NewRegistry builds an immutable registry from the given processors.
// Duplicate node types are a wiring bug and return an error.
func NewRegistry(processors ...ports.NodeProcessor) (*Registry, error) {
	m := make(map[domain.NodeType]ports.NodeProcessor, len(processors))
	for _, p := range processors {
		nodeType := p.NodeType()
		if _, exists := m[nodeType]; exists {
			return nil, fmt.Errorf("processor for node type %q is already registered", nodeType)
		}
		m[nodeType] = p
	}
	return &Registry{processors: m}, nil
}

// Get returns the processor for a node type
func (r *Registry) Get(nodeType domain.NodeType) (ports.NodeProcessor, bool) {
	p, ok := r.processors[nodeType]
	return p, ok
}

// NodeTypes returns all registered node types
func (r *Registry) NodeTypes() []domain.NodeType {
	types := make([]domain.NodeType, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}
	return types
}
