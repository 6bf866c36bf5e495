package models

import (
	"errors"
	"fmt"
	"time"
)

// NodeType discriminates flow node behavior.
type NodeType string

const (
	NodeTypeMessage   NodeType = "message"   // Emit content as the bot reply, then advance
	NodeTypeCondition NodeType = "condition" // Branch on the inbound text
	NodeTypeAction    NodeType = "action"    // Perform a side effect, then advance
	NodeTypeEnd       NodeType = "end"       // Terminate the flow instance
)

// ErrDanglingNodeReference indicates a node points at a node id that does not
// exist in the same flow. Rejected at save time; at run time a dangling
// reference is treated as reaching an end node instead.
var ErrDanglingNodeReference = errors.New("dangling node reference")

// ConditionBranch is one arm of a condition node: if Keyword occurs in the
// inbound text (case-insensitive), the flow advances to Next.
type ConditionBranch struct {
	Keyword string `json:"keyword" validate:"required"`
	Next    string `json:"next"    validate:"required"`
}

// FlowNode is a single step in a flow graph. Nodes reference each other by id
// through Next and condition branches; the graph is flat, not nested.
type FlowNode struct {
	ID   string   `json:"id"   validate:"required"`
	Type NodeType `json:"type" validate:"required,oneof=message condition action end"`

	// Label doubles as the emitted content for message nodes and the action
	// descriptor for action nodes.
	Label string `json:"label"`

	// Next is the default successor. Absent on a message node it means the
	// flow completes after emitting; absent on a condition node it means the
	// flow completes when no branch matches.
	Next string `json:"next,omitempty"`

	// Branches is only meaningful on condition nodes. The first branch whose
	// keyword hits the inbound text wins; otherwise Next applies.
	Branches []ConditionBranch `json:"branches,omitempty"`
}

// Flow is an operator-authored directed graph of conversation steps, executed
// incrementally per inbound message. The first node in Nodes is the entry
// point by convention.
type Flow struct {
	ID    string      `json:"id"`
	Name  string      `json:"name" validate:"required,min=3"`
	Nodes []*FlowNode `json:"nodes"`

	// Version increments on every save so in-flight instances can detect
	// that the graph changed underneath them.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryNode returns the designated starting node, or nil for an empty flow.
func (f *Flow) EntryNode() *FlowNode {
	if len(f.Nodes) == 0 {
		return nil
	}

	return f.Nodes[0]
}

// Node looks up a node by id.
func (f *Flow) Node(id string) *FlowNode {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// Validate checks graph integrity: unique node ids and no dangling next or
// branch references. A flow with zero nodes is valid (it just never emits).
func (f *Flow) Validate() error {
	ids := make(map[string]struct{}, len(f.Nodes))

	for _, node := range f.Nodes {
		if node.ID == "" {
			return errors.New("flow node id is required")
		}

		if _, dup := ids[node.ID]; dup {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}

		ids[node.ID] = struct{}{}
	}

	for _, node := range f.Nodes {
		if node.Next != "" {
			if _, ok := ids[node.Next]; !ok {
				return fmt.Errorf("%w: node %q next %q", ErrDanglingNodeReference, node.ID, node.Next)
			}
		}

		for _, branch := range node.Branches {
			if _, ok := ids[branch.Next]; !ok {
				return fmt.Errorf("%w: node %q branch %q -> %q", ErrDanglingNodeReference, node.ID, branch.Keyword, branch.Next)
			}
		}
	}

	return nil
}
