package services

import (
	"context"
	"fmt"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
)

// Conversation implements the conversation store semantics: identity
// resolution, the append-only transcript, and handoff state updates. All
// per-conversation mutual exclusion is the router's concern; this service is
// pure storage logic.
type Conversation struct {
	persistence persistence.Persistence
}

// NewConversation creates a new conversation service.
func NewConversation(persistence persistence.Persistence) *Conversation {
	return &Conversation{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (c *Conversation) HealthCheck(ctx context.Context) (string, bool) {
	if c.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := c.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Resolve returns the conversation for the identity, creating it on first
// contact. Safe under concurrent first contact for the same identity.
func (c *Conversation) Resolve(ctx context.Context, identity models.ConversationIdentity) (*models.Conversation, bool, error) {
	if identity.Platform == "" || identity.ExternalUserID == "" {
		return nil, false, fmt.Errorf("%w: platform and external_user_id are required", ErrInvalidRequest)
	}

	return c.persistence.Conversations().Resolve(ctx, identity)
}

// Get fetches a conversation by id.
func (c *Conversation) Get(ctx context.Context, id int64) (*models.Conversation, error) {
	return c.persistence.Conversations().GetByID(ctx, id)
}

// List returns a page of conversations.
func (c *Conversation) List(ctx context.Context, opts persistence.ListConversationsOptions) (*persistence.ConversationListResult, error) {
	return c.persistence.Conversations().List(ctx, opts)
}

// Transcript returns the conversation's messages in creation order.
func (c *Conversation) Transcript(ctx context.Context, id int64, limit int) ([]*models.Message, error) {
	if _, err := c.Get(ctx, id); err != nil {
		return nil, err
	}

	return c.persistence.Messages().ListByConversation(ctx, id, limit)
}

// AppendMessage appends to the transcript. Fails with ConversationClosed when
// the conversation no longer accepts messages.
func (c *Conversation) AppendMessage(ctx context.Context, conversation *models.Conversation, sender models.MessageSender, content string) (*models.Message, error) {
	if !conversation.IsOpen() {
		return nil, persistence.NewConversationError("AppendMessage", conversation.ID, persistence.ErrConversationClosed)
	}

	message := &models.Message{
		ConversationID: conversation.ID,
		Sender:         sender,
		Content:        content,
		Platform:       conversation.Platform,
		ExternalUserID: conversation.ExternalUserID,
	}

	return c.persistence.Messages().Append(ctx, message)
}

// Update persists in-memory mutations (handoff, tags, flow instance, status).
func (c *Conversation) Update(ctx context.Context, conversation *models.Conversation) error {
	return c.persistence.Conversations().Update(ctx, conversation)
}

// SetHandoff switches the conversation between bot and human mode. Idempotent
// for an existing id. Enabling handoff destroys any active flow instance so a
// human agent never competes with an automated flow.
func (c *Conversation) SetHandoff(ctx context.Context, id int64, enabled bool) (*models.Conversation, bool, error) {
	conversation, err := c.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if conversation.HandoffEnabled == enabled {
		return conversation, false, nil
	}

	conversation.HandoffEnabled = enabled
	if enabled {
		conversation.ActiveFlow = nil
	}

	if err := c.Update(ctx, conversation); err != nil {
		return nil, false, err
	}

	return conversation, true, nil
}

// AgentReply records a human agent's message. Valid only while handoff is
// enabled; the reply does not change handoff state.
func (c *Conversation) AgentReply(ctx context.Context, id int64, content string) (*models.Message, error) {
	conversation, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !conversation.HandoffEnabled {
		return nil, fmt.Errorf("conversation %d: %w", id, ErrAgentReplyWithoutHandoff)
	}

	return c.AppendMessage(ctx, conversation, models.MessageSenderAgent, content)
}

// Close archives the conversation. Further appends fail with
// ConversationClosed. Closing clears any active flow instance.
func (c *Conversation) Close(ctx context.Context, id int64) (*models.Conversation, error) {
	conversation, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !conversation.IsOpen() {
		return conversation, nil
	}

	conversation.Status = models.ConversationStatusClosed
	conversation.ActiveFlow = nil

	if err := c.Update(ctx, conversation); err != nil {
		return nil, err
	}

	return conversation, nil
}
