package services

import (
	"testing"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveTestConversation(t *testing.T, service *Conversation) *models.Conversation {
	t.Helper()

	conversation, created, err := service.Resolve(t.Context(),
		models.ConversationIdentity{Platform: "web", ExternalUserID: "u1"})
	require.NoError(t, err)
	require.True(t, created)

	return conversation
}

func TestConversation_Resolve_RequiresIdentity(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))

	_, _, err := service.Resolve(t.Context(), models.ConversationIdentity{Platform: "web"})
	assert.True(t, IsValidationError(err))

	_, _, err = service.Resolve(t.Context(), models.ConversationIdentity{ExternalUserID: "u1"})
	assert.True(t, IsValidationError(err))
}

func TestConversation_AppendMessage(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))
	conversation := resolveTestConversation(t, service)

	message, err := service.AppendMessage(t.Context(), conversation, models.MessageSenderUser, "hello")
	require.NoError(t, err)
	assert.NotZero(t, message.ID)
	assert.Equal(t, conversation.ID, message.ConversationID)
	assert.Equal(t, "web", message.Platform)
	assert.Equal(t, "u1", message.ExternalUserID)
}

func TestConversation_AppendMessage_ClosedConversation(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))
	conversation := resolveTestConversation(t, service)

	closed, err := service.Close(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusClosed, closed.Status)

	_, err = service.AppendMessage(t.Context(), closed, models.MessageSenderUser, "too late")
	assert.True(t, persistence.IsConversationClosed(err))
}

func TestConversation_Close_Idempotent(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))
	conversation := resolveTestConversation(t, service)

	_, err := service.Close(t.Context(), conversation.ID)
	require.NoError(t, err)

	again, err := service.Close(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusClosed, again.Status)
}

func TestConversation_Close_ClearsActiveFlow(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))
	conversation := resolveTestConversation(t, service)

	conversation.ActiveFlow = &models.FlowInstance{FlowID: "welcome", CurrentNodeID: "a"}
	require.NoError(t, service.Update(t.Context(), conversation))

	closed, err := service.Close(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, closed.ActiveFlow)
}

func TestConversation_SetHandoff_Idempotent(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))
	conversation := resolveTestConversation(t, service)

	updated, changed, err := service.SetHandoff(t.Context(), conversation.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, updated.HandoffEnabled)

	updated, changed, err = service.SetHandoff(t.Context(), conversation.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, updated.HandoffEnabled)
}

func TestConversation_SetHandoff_NotFound(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))

	_, _, err := service.SetHandoff(t.Context(), 999, true)
	assert.True(t, persistence.IsConversationNotFound(err))
}

func TestConversation_SetHandoff_EnableClearsActiveFlow(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))
	conversation := resolveTestConversation(t, service)

	conversation.ActiveFlow = &models.FlowInstance{FlowID: "welcome", CurrentNodeID: "a"}
	require.NoError(t, service.Update(t.Context(), conversation))

	updated, _, err := service.SetHandoff(t.Context(), conversation.ID, true)
	require.NoError(t, err)
	assert.Nil(t, updated.ActiveFlow)
}

func TestConversation_AgentReply_RequiresHumanMode(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))
	conversation := resolveTestConversation(t, service)

	_, err := service.AgentReply(t.Context(), conversation.ID, "hi, agent here")
	assert.ErrorIs(t, err, ErrAgentReplyWithoutHandoff)
	assert.True(t, IsInvalidState(err))

	_, _, err = service.SetHandoff(t.Context(), conversation.ID, true)
	require.NoError(t, err)

	message, err := service.AgentReply(t.Context(), conversation.ID, "hi, agent here")
	require.NoError(t, err)
	assert.Equal(t, models.MessageSenderAgent, message.Sender)

	// Replying does not flip the conversation back to bot mode.
	loaded, err := service.Get(t.Context(), conversation.ID)
	require.NoError(t, err)
	assert.True(t, loaded.HandoffEnabled)
}

func TestConversation_Transcript_UnknownConversation(t *testing.T) {
	service := NewConversation(file.NewPersistence(t.TempDir()))

	_, err := service.Transcript(t.Context(), 404, 0)
	assert.True(t, persistence.IsConversationNotFound(err))
}
