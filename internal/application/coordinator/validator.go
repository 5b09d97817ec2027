package coordinator

import (
	"fmt"

	"github.com/loopfi/conductor/internal/application/processor"
	"github.com/loopfi/conductor/internal/domain"
)

// Validator validates workflow definitions before execution
type Validator struct {
	registry *processor.Registry
}

// NewValidator creates a workflow validator
func NewValidator(registry *processor.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks the structural soundness of a workflow: known node types,
// config variants matching their type tag, resolvable dependencies, and an
// acyclic graph
func (v *Validator) Validate(w *domain.Workflow) error {
	if w == nil {
		return fmt.Errorf("workflow is nil")
	}
	if w.ID == "" {
		return fmt.Errorf("workflow ID is required")
	}
	if len(w.Nodes) == 0 {
		return fmt.Errorf("workflow must have at least one node")
	}

	for nodeID, node := range w.Nodes {
		if err := v.validateNode(nodeID, node); err != nil {
			return fmt.Errorf("invalid node %s: %w", nodeID, err)
		}

		for _, dep := range node.DependsOn {
			if _, exists := w.Nodes[dep]; !exists {
				return fmt.Errorf("node %s depends on unknown node %s", nodeID, dep)
			}
			if dep == nodeID {
				return fmt.Errorf("node %s depends on itself", nodeID)
			}
		}
	}

	if err := v.checkAcyclic(w); err != nil {
		return err
	}

	return nil
}

// validateNode checks one node's type tag and config variant
func (v *Validator) validateNode(nodeID string, node domain.Node) error {
	if node.ID != "" && node.ID != nodeID {
		return fmt.Errorf("node ID %q does not match its key %q", node.ID, nodeID)
	}

	if _, ok := v.registry.Get(node.Type); !ok {
		return fmt.Errorf("no processor registered for node type %q", node.Type)
	}

	// The config union must carry exactly the variant the type tag names.
	variants := map[domain.NodeType]bool{
		domain.NodeTypeLending:      node.Config.Lending != nil,
		domain.NodeTypeTrigger:      node.Config.Trigger != nil,
		domain.NodeTypeTransform:    node.Config.Transform != nil,
		domain.NodeTypeNotification: node.Config.Notification != nil,
	}
	for nodeType, present := range variants {
		if nodeType == node.Type && !present {
			return fmt.Errorf("config variant for type %q is missing", node.Type)
		}
		if nodeType != node.Type && present {
			return fmt.Errorf("config variant %q does not match type tag %q", nodeType, node.Type)
		}
	}

	return nil
}

// checkAcyclic rejects workflows whose dependency graph contains a cycle
func (v *Validator) checkAcyclic(w *domain.Workflow) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(w.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("dependency cycle through node %s", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, dep := range w.Nodes[id].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for id := range w.Nodes {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
