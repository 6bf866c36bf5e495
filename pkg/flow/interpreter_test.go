package flow

import (
	"log/slog"
	"testing"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterpreter(t *testing.T) (*Interpreter, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewInterpreter(store.Flows(), slog.Default()), store
}

func saveFlow(t *testing.T, store *file.Persistence, flow *models.Flow) {
	t.Helper()
	require.NoError(t, store.Flows().Save(t.Context(), flow))
}

func openConversation() *models.Conversation {
	return &models.Conversation{
		ID:       1,
		Platform: "web",
		Status:   models.ConversationStatusOpen,
	}
}

func TestInterpreter_StartPositionsAtEntryWithoutEmitting(t *testing.T) {
	interpreter, _ := newTestInterpreter(t)

	flow := &models.Flow{
		ID:      "welcome",
		Version: 3,
		Nodes: []*models.FlowNode{
			{ID: "greet", Type: models.NodeTypeMessage, Label: "Hi!"},
		},
	}

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	require.NotNil(t, conversation.ActiveFlow)
	assert.Equal(t, "welcome", conversation.ActiveFlow.FlowID)
	assert.Equal(t, 3, conversation.ActiveFlow.FlowVersion)
	assert.Equal(t, "greet", conversation.ActiveFlow.CurrentNodeID)
}

func TestInterpreter_StartReplacesActiveInstance(t *testing.T) {
	interpreter, _ := newTestInterpreter(t)

	first := &models.Flow{ID: "first", Nodes: []*models.FlowNode{{ID: "a", Type: models.NodeTypeMessage, Label: "A"}}}
	second := &models.Flow{ID: "second", Nodes: []*models.FlowNode{{ID: "b", Type: models.NodeTypeMessage, Label: "B"}}}

	conversation := openConversation()
	interpreter.Start(conversation, first)
	interpreter.Start(conversation, second)

	assert.Equal(t, "second", conversation.ActiveFlow.FlowID)
	assert.Equal(t, "b", conversation.ActiveFlow.CurrentNodeID)
}

func TestInterpreter_MessageThenEnd_EmitsOnceAndCompletes(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "short",
		Nodes: []*models.FlowNode{
			{ID: "a", Type: models.NodeTypeMessage, Label: "Welcome aboard", Next: "b"},
			{ID: "b", Type: models.NodeTypeEnd},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Welcome aboard", step.Output)
	assert.True(t, step.Completed)
	assert.Nil(t, conversation.ActiveFlow)
}

func TestInterpreter_MessageWithoutNextCompletes(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "single",
		Nodes: []*models.FlowNode{
			{ID: "only", Type: models.NodeTypeMessage, Label: "Bye"},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Bye", step.Output)
	assert.True(t, step.Completed)
}

func TestInterpreter_SecondMessageNodeWaitsForNextInbound(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "two-messages",
		Nodes: []*models.FlowNode{
			{ID: "a", Type: models.NodeTypeMessage, Label: "First", Next: "b"},
			{ID: "b", Type: models.NodeTypeMessage, Label: "Second", Next: "c"},
			{ID: "c", Type: models.NodeTypeEnd},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "go")
	require.NoError(t, err)
	assert.Equal(t, "First", step.Output)
	assert.False(t, step.Completed)
	require.NotNil(t, conversation.ActiveFlow)
	assert.Equal(t, "b", conversation.ActiveFlow.CurrentNodeID)

	step, err = interpreter.Advance(t.Context(), conversation, "more")
	require.NoError(t, err)
	assert.Equal(t, "Second", step.Output)
	assert.True(t, step.Completed)
}

func TestInterpreter_ConditionBranchesOnKeyword(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "triage",
		Nodes: []*models.FlowNode{
			{ID: "ask", Type: models.NodeTypeCondition, Next: "other", Branches: []models.ConditionBranch{
				{Keyword: "yes", Next: "confirmed"},
			}},
			{ID: "confirmed", Type: models.NodeTypeMessage, Label: "Great!"},
			{ID: "other", Type: models.NodeTypeMessage, Label: "No problem."},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "YES please")
	require.NoError(t, err)
	assert.Equal(t, "Great!", step.Output)

	conversation = openConversation()
	interpreter.Start(conversation, flow)

	step, err = interpreter.Advance(t.Context(), conversation, "not really")
	require.NoError(t, err)
	assert.Equal(t, "No problem.", step.Output)
}

func TestInterpreter_ConditionWithoutDefaultCompletes(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "strict",
		Nodes: []*models.FlowNode{
			{ID: "ask", Type: models.NodeTypeCondition, Branches: []models.ConditionBranch{
				{Keyword: "yes", Next: "ok"},
			}},
			{ID: "ok", Type: models.NodeTypeMessage, Label: "Done"},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "nope")
	require.NoError(t, err)
	assert.Empty(t, step.Output)
	assert.True(t, step.Completed)
	assert.Nil(t, conversation.ActiveFlow)
}

func TestInterpreter_DanglingNextAtRuntimeTreatedAsEnd(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	// The instance points at a node id the saved graph no longer has. The
	// interpreter terminates the flow instead of crashing.
	flow := &models.Flow{
		ID: "edited",
		Nodes: []*models.FlowNode{
			{ID: "a", Type: models.NodeTypeMessage, Label: "Hi"},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	conversation.ActiveFlow = &models.FlowInstance{FlowID: "edited", CurrentNodeID: "removed"}

	step, err := interpreter.Advance(t.Context(), conversation, "hello")
	require.NoError(t, err)
	assert.Empty(t, step.Output)
	assert.True(t, step.Completed)
	assert.Nil(t, conversation.ActiveFlow)
}

func TestInterpreter_DeletedFlowTerminatesInstance(t *testing.T) {
	interpreter, _ := newTestInterpreter(t)

	conversation := openConversation()
	conversation.ActiveFlow = &models.FlowInstance{FlowID: "gone", CurrentNodeID: "a"}

	step, err := interpreter.Advance(t.Context(), conversation, "hello")
	require.NoError(t, err)
	assert.True(t, step.Completed)
	assert.Nil(t, conversation.ActiveFlow)
}

func TestInterpreter_EscalateActionHandsOff(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "support",
		Nodes: []*models.FlowNode{
			{ID: "note", Type: models.NodeTypeMessage, Label: "Connecting you to an agent", Next: "handoff"},
			{ID: "handoff", Type: models.NodeTypeAction, Label: "escalate"},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "I need help")
	require.NoError(t, err)
	assert.Equal(t, "Connecting you to an agent", step.Output)
	assert.True(t, step.Escalated)
	assert.True(t, step.Completed)
	assert.True(t, conversation.HandoffEnabled)
	assert.Nil(t, conversation.ActiveFlow)
}

func TestInterpreter_TagActionIsIdempotentAndAdvances(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "label",
		Nodes: []*models.FlowNode{
			{ID: "tagit", Type: models.NodeTypeAction, Label: "tag:lead", Next: "done"},
			{ID: "done", Type: models.NodeTypeMessage, Label: "Noted"},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	conversation.Tags = []string{"lead"}
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Noted", step.Output)
	assert.Equal(t, []string{"lead"}, conversation.Tags)
}

func TestInterpreter_StartFlowActionReplacesInstance(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	next := &models.Flow{
		ID:      "onboarding",
		Version: 2,
		Nodes: []*models.FlowNode{
			{ID: "intro", Type: models.NodeTypeMessage, Label: "Welcome"},
		},
	}
	saveFlow(t, store, next)

	flow := &models.Flow{
		ID: "router-flow",
		Nodes: []*models.FlowNode{
			{ID: "jump", Type: models.NodeTypeAction, Label: "start_flow:onboarding"},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "hi")
	require.NoError(t, err)
	assert.Equal(t, "onboarding", step.StartedFlowID)
	require.NotNil(t, conversation.ActiveFlow)
	assert.Equal(t, "onboarding", conversation.ActiveFlow.FlowID)
	assert.Equal(t, 2, conversation.ActiveFlow.FlowVersion)
	assert.Equal(t, "intro", conversation.ActiveFlow.CurrentNodeID)
}

func TestInterpreter_SearchKBActionRequestsAugmentation(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	flow := &models.Flow{
		ID: "kb",
		Nodes: []*models.FlowNode{
			{ID: "lookup", Type: models.NodeTypeAction, Label: "search_kb:shipping times", Next: "done"},
			{ID: "done", Type: models.NodeTypeEnd},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "when does it ship")
	require.NoError(t, err)
	require.NotNil(t, step.Augment)
	assert.Equal(t, "shipping times", step.Augment.Query)
	assert.True(t, step.Completed)
}

func TestInterpreter_NoActiveFlowIsANoop(t *testing.T) {
	interpreter, _ := newTestInterpreter(t)

	conversation := openConversation()

	step, err := interpreter.Advance(t.Context(), conversation, "hello")
	require.NoError(t, err)
	assert.Empty(t, step.Output)
	assert.False(t, step.Completed)
}

func TestInterpreter_ActionCycleHitsStepLimit(t *testing.T) {
	interpreter, store := newTestInterpreter(t)

	// Two tag actions pointing at each other would loop forever without the
	// per-message step limit.
	flow := &models.Flow{
		ID: "loop",
		Nodes: []*models.FlowNode{
			{ID: "a", Type: models.NodeTypeAction, Label: "tag:x", Next: "b"},
			{ID: "b", Type: models.NodeTypeAction, Label: "tag:y", Next: "a"},
		},
	}
	saveFlow(t, store, flow)

	conversation := openConversation()
	interpreter.Start(conversation, flow)

	step, err := interpreter.Advance(t.Context(), conversation, "hello")
	require.NoError(t, err)
	assert.True(t, step.Completed)
	assert.Nil(t, conversation.ActiveFlow)
}
