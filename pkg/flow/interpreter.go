// Package flow executes operator-authored conversation graphs one inbound
// message at a time.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
)

// maxStepsPerMessage bounds graph traversal for a single inbound message so a
// cycle of action nodes cannot spin forever.
const maxStepsPerMessage = 64

// AugmentRequest asks the router to answer via knowledge-base augmented
// generation instead of a fixed reply.
type AugmentRequest struct {
	Query string
}

// StepResult describes what one interpreter step did. All conversation
// mutations (active flow, handoff, tags) happen on the in-memory
// conversation; the caller persists it.
type StepResult struct {
	// Output is the bot reply emitted by a message node, empty when the
	// step produced no text.
	Output string

	// Completed reports that the flow instance was cleared this step.
	Completed bool

	// Escalated reports that an action node handed the conversation to a
	// human agent.
	Escalated bool

	// StartedFlowID is set when an action node replaced the instance with
	// another flow.
	StartedFlowID string

	// Augment is set when an action node requested knowledge-base
	// augmented generation.
	Augment *AugmentRequest
}

// Interpreter advances flow instances. It is stateless; all progress lives in
// the conversation's FlowInstance.
type Interpreter struct {
	flows  persistence.FlowRepository
	logger *slog.Logger
}

func NewInterpreter(flows persistence.FlowRepository, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		flows:  flows,
		logger: logger.With("module", "flow_interpreter"),
	}
}

// Start replaces the conversation's flow instance with a fresh one positioned
// at the flow's entry node. Last start wins; flows never stack. Nothing is
// emitted until the next inbound message advances the instance.
func (i *Interpreter) Start(conversation *models.Conversation, flow *models.Flow) {
	instance := &models.FlowInstance{
		FlowID:      flow.ID,
		FlowVersion: flow.Version,
		StartedAt:   time.Now().UTC(),
	}

	if entry := flow.EntryNode(); entry != nil {
		instance.CurrentNodeID = entry.ID
	}

	conversation.ActiveFlow = instance
}

// Advance executes the conversation's active flow against one inbound
// message. Condition nodes branch on the text; a message node emits at most
// once per call; action and end nodes are drained eagerly so a completed flow
// never needs a throwaway user message to finish.
func (i *Interpreter) Advance(ctx context.Context, conversation *models.Conversation, text string) (*StepResult, error) {
	result := &StepResult{}

	instance := conversation.ActiveFlow
	if instance == nil {
		return result, nil
	}

	graph, err := i.flows.GetByID(ctx, instance.FlowID)
	if persistence.IsFlowNotFound(err) {
		// The flow was deleted while the instance was in flight. Fail-safe
		// termination, never a crash.
		i.logger.WarnContext(ctx, "Active flow no longer exists, clearing instance",
			"conversation_id", conversation.ID, "flow_id", instance.FlowID)
		i.clear(conversation, result)

		return result, nil
	}

	if err != nil {
		return nil, err
	}

	if graph.Version != instance.FlowVersion {
		i.logger.DebugContext(ctx, "Flow changed since instance started",
			"conversation_id", conversation.ID, "flow_id", graph.ID,
			"instance_version", instance.FlowVersion, "flow_version", graph.Version)
	}

	emitted := false

	for step := 0; step < maxStepsPerMessage; step++ {
		node := graph.Node(instance.CurrentNodeID)
		if node == nil {
			// Dangling reference discovered at run time, e.g. the node was
			// deleted after being referenced. Treated as reaching end.
			i.clear(conversation, result)

			return result, nil
		}

		switch node.Type {
		case models.NodeTypeEnd:
			i.clear(conversation, result)

			return result, nil

		case models.NodeTypeMessage:
			if emitted {
				// A second message node waits for the next inbound message.
				return result, nil
			}

			result.Output = node.Label
			emitted = true

			if node.Next == "" {
				i.clear(conversation, result)

				return result, nil
			}

			instance.CurrentNodeID = node.Next

		case models.NodeTypeCondition:
			if emitted {
				// Conditions branch on fresh user input; stop here and let
				// the next inbound message decide.
				return result, nil
			}

			instance.CurrentNodeID = i.branch(node, text)
			if instance.CurrentNodeID == "" {
				i.clear(conversation, result)

				return result, nil
			}

		case models.NodeTypeAction:
			done, err := i.performAction(ctx, conversation, node, result)
			if err != nil {
				return nil, err
			}

			if done {
				return result, nil
			}

			if node.Next == "" {
				i.clear(conversation, result)

				return result, nil
			}

			instance.CurrentNodeID = node.Next

		default:
			i.logger.WarnContext(ctx, "Unknown node type, clearing instance",
				"conversation_id", conversation.ID, "flow_id", graph.ID,
				"node_id", node.ID, "node_type", string(node.Type))
			i.clear(conversation, result)

			return result, nil
		}
	}

	i.logger.WarnContext(ctx, "Flow exceeded step limit for one message, clearing instance",
		"conversation_id", conversation.ID, "flow_id", graph.ID)
	i.clear(conversation, result)

	return result, nil
}

// branch picks the condition successor: the first branch whose keyword occurs
// in the inbound text wins, otherwise the node's default next.
func (i *Interpreter) branch(node *models.FlowNode, text string) string {
	lowered := strings.ToLower(text)

	for _, candidate := range node.Branches {
		if candidate.Keyword == "" {
			continue
		}

		if strings.Contains(lowered, strings.ToLower(candidate.Keyword)) {
			return candidate.Next
		}
	}

	return node.Next
}

// performAction executes an action node's side effect on the in-memory
// conversation. The returned bool reports that stepping must stop.
func (i *Interpreter) performAction(ctx context.Context, conversation *models.Conversation, node *models.FlowNode, result *StepResult) (bool, error) {
	action, err := models.ParseAction(node.Label)
	if err != nil {
		// Broken descriptors are skipped, not fatal: the flow moves on.
		i.logger.WarnContext(ctx, "Skipping action node with invalid descriptor",
			"conversation_id", conversation.ID, "node_id", node.ID,
			"descriptor", node.Label, "error", err)

		return false, nil
	}

	switch action.Kind {
	case models.ActionKindEscalate:
		conversation.HandoffEnabled = true
		result.Escalated = true
		i.clear(conversation, result)

		return true, nil

	case models.ActionKindTag:
		if !conversation.HasTag(action.Label) {
			conversation.Tags = append(conversation.Tags, action.Label)
		}

		return false, nil

	case models.ActionKindStartFlow:
		next, err := i.flows.GetByID(ctx, action.FlowID)
		if persistence.IsFlowNotFound(err) {
			i.logger.WarnContext(ctx, "Action node references missing flow",
				"conversation_id", conversation.ID, "node_id", node.ID, "flow_id", action.FlowID)
			i.clear(conversation, result)

			return true, nil
		}

		if err != nil {
			return false, err
		}

		i.Start(conversation, next)
		result.StartedFlowID = next.ID

		return true, nil

	case models.ActionKindSearchKB:
		result.Augment = &AugmentRequest{Query: action.Query}

		return false, nil

	case models.ActionKindReply:
		// A reply action inside a flow behaves like a message node without
		// consuming the per-message emission slot of conditions.
		if result.Output == "" {
			result.Output = action.Text
		}

		return false, nil

	default:
		return false, nil
	}
}

func (i *Interpreter) clear(conversation *models.Conversation, result *StepResult) {
	conversation.ActiveFlow = nil
	result.Completed = true
}
