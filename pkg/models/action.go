package models

import (
	"errors"
	"fmt"
	"strings"
)

// ActionKind discriminates the automation action variants.
type ActionKind string

const (
	ActionKindReply     ActionKind = "reply"      // Send a fixed text reply
	ActionKindEscalate  ActionKind = "escalate"   // Hand the conversation to a human agent
	ActionKindTag       ActionKind = "tag"        // Attach a label to the conversation
	ActionKindStartFlow ActionKind = "start_flow" // Begin a conversation flow
	ActionKindSearchKB  ActionKind = "search_kb"  // Answer with knowledge-base augmented generation
)

// ErrUnknownActionKind is returned when an action descriptor names a kind the
// engine does not implement.
var ErrUnknownActionKind = errors.New("unknown action kind")

// ErrEmptyActionDescriptor is returned for a blank action descriptor.
var ErrEmptyActionDescriptor = errors.New("empty action descriptor")

// Action is the tagged union of everything a workflow rule or a flow action
// node may do. Exactly one payload field is meaningful, selected by Kind.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Text   string     `json:"text,omitempty"`    // reply
	Label  string     `json:"label,omitempty"`   // tag
	FlowID string     `json:"flow_id,omitempty"` // start_flow
	Query  string     `json:"query,omitempty"`   // search_kb, empty means "use the inbound text"
}

// ParseAction converts the wire descriptor form ("reply:<text>", "escalate",
// "tag:<label>", "start_flow:<flow id>", "search_kb[:<query>]") into a typed
// Action. The descriptor form is what operators author in the admin UI.
func ParseAction(descriptor string) (*Action, error) {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return nil, ErrEmptyActionDescriptor
	}

	kind, arg, _ := strings.Cut(descriptor, ":")

	switch ActionKind(kind) {
	case ActionKindReply:
		if arg == "" {
			return nil, fmt.Errorf("reply action requires text: %q", descriptor)
		}

		return &Action{Kind: ActionKindReply, Text: arg}, nil
	case ActionKindEscalate:
		return &Action{Kind: ActionKindEscalate}, nil
	case ActionKindTag:
		if arg == "" {
			return nil, fmt.Errorf("tag action requires a label: %q", descriptor)
		}

		return &Action{Kind: ActionKindTag, Label: arg}, nil
	case ActionKindStartFlow:
		if arg == "" {
			return nil, fmt.Errorf("start_flow action requires a flow id: %q", descriptor)
		}

		return &Action{Kind: ActionKindStartFlow, FlowID: arg}, nil
	case ActionKindSearchKB:
		return &Action{Kind: ActionKindSearchKB, Query: arg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionKind, kind)
	}
}

// Descriptor renders the action back into its wire form.
func (a *Action) Descriptor() string {
	switch a.Kind {
	case ActionKindReply:
		return string(ActionKindReply) + ":" + a.Text
	case ActionKindTag:
		return string(ActionKindTag) + ":" + a.Label
	case ActionKindStartFlow:
		return string(ActionKindStartFlow) + ":" + a.FlowID
	case ActionKindSearchKB:
		if a.Query == "" {
			return string(ActionKindSearchKB)
		}

		return string(ActionKindSearchKB) + ":" + a.Query
	default:
		return string(a.Kind)
	}
}
