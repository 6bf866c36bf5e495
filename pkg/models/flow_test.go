package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlow_Validate_Valid(t *testing.T) {
	flow := &Flow{
		Name: "Welcome",
		Nodes: []*FlowNode{
			{ID: "greet", Type: NodeTypeMessage, Label: "Hello!", Next: "ask"},
			{ID: "ask", Type: NodeTypeCondition, Next: "done", Branches: []ConditionBranch{
				{Keyword: "yes", Next: "greet"},
			}},
			{ID: "done", Type: NodeTypeEnd},
		},
	}

	assert.NoError(t, flow.Validate())
}

func TestFlow_Validate_EmptyFlow(t *testing.T) {
	flow := &Flow{Name: "Empty"}

	assert.NoError(t, flow.Validate())
}

func TestFlow_Validate_DanglingNext(t *testing.T) {
	flow := &Flow{
		Name: "Broken",
		Nodes: []*FlowNode{
			{ID: "greet", Type: NodeTypeMessage, Label: "Hello!", Next: "missing"},
		},
	}

	err := flow.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingNodeReference)
}

func TestFlow_Validate_DanglingBranch(t *testing.T) {
	flow := &Flow{
		Name: "Broken",
		Nodes: []*FlowNode{
			{ID: "ask", Type: NodeTypeCondition, Branches: []ConditionBranch{
				{Keyword: "yes", Next: "missing"},
			}},
		},
	}

	assert.ErrorIs(t, flow.Validate(), ErrDanglingNodeReference)
}

func TestFlow_Validate_DuplicateNodeID(t *testing.T) {
	flow := &Flow{
		Name: "Broken",
		Nodes: []*FlowNode{
			{ID: "a", Type: NodeTypeMessage, Label: "first"},
			{ID: "a", Type: NodeTypeEnd},
		},
	}

	assert.Error(t, flow.Validate())
}

func TestFlow_Validate_MissingNodeID(t *testing.T) {
	flow := &Flow{
		Name: "Broken",
		Nodes: []*FlowNode{
			{Type: NodeTypeMessage, Label: "no id"},
		},
	}

	assert.Error(t, flow.Validate())
}

func TestFlow_EntryNode(t *testing.T) {
	flow := &Flow{
		Nodes: []*FlowNode{
			{ID: "first", Type: NodeTypeMessage},
			{ID: "second", Type: NodeTypeEnd},
		},
	}

	require.NotNil(t, flow.EntryNode())
	assert.Equal(t, "first", flow.EntryNode().ID)

	empty := &Flow{}
	assert.Nil(t, empty.EntryNode())
}

func TestFlow_Node(t *testing.T) {
	flow := &Flow{
		Nodes: []*FlowNode{
			{ID: "a", Type: NodeTypeMessage},
		},
	}

	assert.NotNil(t, flow.Node("a"))
	assert.Nil(t, flow.Node("b"))
}
