package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopfi/conductor/internal/application/processor"
	"github.com/loopfi/conductor/internal/domain"
	"github.com/loopfi/conductor/internal/ports"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	registry, err := processor.NewRegistry(&stubProcessor{
		fn: func(input ports.ProcessorInput) ports.ProcessorOutput {
			return ports.ProcessorOutput{NodeID: input.NodeID, Success: true}
		},
	})
	require.NoError(t, err)
	return NewValidator(registry)
}

func TestValidateAcceptsLinearChain(t *testing.T) {
	v := newTestValidator(t)
	workflow := &domain.Workflow{
		ID: "wf-1",
		Nodes: map[string]domain.Node{
			"a": lendingNode(nil, domain.RetryPolicy{}),
			"b": lendingNode([]string{"a"}, domain.RetryPolicy{}),
			"c": lendingNode([]string{"b"}, domain.RetryPolicy{}),
		},
	}
	assert.NoError(t, v.Validate(workflow))
}

func TestValidateRejectsMissingID(t *testing.T) {
	v := newTestValidator(t)
	workflow := &domain.Workflow{
		Nodes: map[string]domain.Node{"a": lendingNode(nil, domain.RetryPolicy{})},
	}
	assert.Error(t, v.Validate(workflow))
}

func TestValidateRejectsEmptyWorkflow(t *testing.T) {
	v := newTestValidator(t)
	assert.Error(t, v.Validate(&domain.Workflow{ID: "wf-1"}))
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	v := newTestValidator(t)
	workflow := &domain.Workflow{
		ID: "wf-1",
		Nodes: map[string]domain.Node{
			"a": lendingNode([]string{"ghost"}, domain.RetryPolicy{}),
		},
	}
	assert.Error(t, v.Validate(workflow))
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	v := newTestValidator(t)
	workflow := &domain.Workflow{
		ID: "wf-1",
		Nodes: map[string]domain.Node{
			"a": lendingNode([]string{"a"}, domain.RetryPolicy{}),
		},
	}
	assert.Error(t, v.Validate(workflow))
}

func TestValidateRejectsCycle(t *testing.T) {
	v := newTestValidator(t)
	workflow := &domain.Workflow{
		ID: "wf-1",
		Nodes: map[string]domain.Node{
			"a": lendingNode([]string{"c"}, domain.RetryPolicy{}),
			"b": lendingNode([]string{"a"}, domain.RetryPolicy{}),
			"c": lendingNode([]string{"b"}, domain.RetryPolicy{}),
		},
	}
	err := v.Validate(workflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateRejectsUnregisteredNodeType(t *testing.T) {
	v := newTestValidator(t)
	workflow := &domain.Workflow{
		ID: "wf-1",
		Nodes: map[string]domain.Node{
			"a": {
				Type:   domain.NodeTypeTrigger,
				Config: domain.NodeConfig{Trigger: &domain.TriggerNodeConfig{Kind: "manual"}},
			},
		},
	}
	assert.Error(t, v.Validate(workflow))
}

func TestValidateRejectsConfigVariantMismatch(t *testing.T) {
	v := newTestValidator(t)

	// Type tag says lending but only the trigger variant is populated.
	workflow := &domain.Workflow{
		ID: "wf-1",
		Nodes: map[string]domain.Node{
			"a": {
				Type:   domain.NodeTypeLending,
				Config: domain.NodeConfig{Trigger: &domain.TriggerNodeConfig{Kind: "manual"}},
			},
		},
	}
	assert.Error(t, v.Validate(workflow))

	// Both variants populated is just as invalid.
	node := lendingNode(nil, domain.RetryPolicy{})
	node.Config.Trigger = &domain.TriggerNodeConfig{Kind: "manual"}
	workflow.Nodes["a"] = node
	assert.Error(t, v.Validate(workflow))
}

func TestValidateRejectsMismatchedNodeID(t *testing.T) {
	v := newTestValidator(t)
	node := lendingNode(nil, domain.RetryPolicy{})
	node.ID = "other"
	workflow := &domain.Workflow{
		ID:    "wf-1",
		Nodes: map[string]domain.Node{"a": node},
	}
	assert.Error(t, v.Validate(workflow))
}
