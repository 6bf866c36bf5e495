// Package models defines the core domain models for conversation orchestration.
package models

import "time"

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "open"   // Accepting inbound and outbound messages
	ConversationStatusClosed ConversationStatus = "closed" // Archived, append attempts are rejected
)

// HandoffState controls whether the bot or a human agent answers a conversation.
type HandoffState string

const (
	HandoffStateBot   HandoffState = "bot"
	HandoffStateHuman HandoffState = "human"
)

// ConversationIdentity is the unique key of an ongoing dialogue: the channel
// the user writes from and the user's identifier on that channel.
type ConversationIdentity struct {
	Platform       string `json:"platform"         validate:"required"`
	ExternalUserID string `json:"external_user_id" validate:"required"`
}

// FlowInstance is the progress marker of a flow running inside a conversation.
// At most one instance is active per conversation; it is cleared when the flow
// reaches an end node, when a human handoff begins, or when cancelled.
type FlowInstance struct {
	FlowID        string    `json:"flow_id"`
	FlowVersion   int       `json:"flow_version"` // Pins the node graph version the instance started with
	CurrentNodeID string    `json:"current_node_id"`
	StartedAt     time.Time `json:"started_at"`
}

// Conversation is a persistent dialogue with a single external user. Created
// on first contact, never deleted, only closed.
type Conversation struct {
	ID             int64              `json:"id"`
	Platform       string             `json:"platform"         validate:"required"`
	ExternalUserID string             `json:"external_user_id" validate:"required"`
	Status         ConversationStatus `json:"status"`
	HandoffEnabled bool               `json:"handoff_enabled"`
	Tags           []string           `json:"tags,omitempty"`
	ActiveFlow     *FlowInstance      `json:"active_flow,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Identity returns the (platform, external user id) pair that uniquely
// identifies this conversation.
func (c *Conversation) Identity() ConversationIdentity {
	return ConversationIdentity{Platform: c.Platform, ExternalUserID: c.ExternalUserID}
}

// HandoffState derives the routing mode from the handoff flag.
func (c *Conversation) HandoffState() HandoffState {
	if c.HandoffEnabled {
		return HandoffStateHuman
	}

	return HandoffStateBot
}

// IsOpen reports whether the conversation still accepts messages.
func (c *Conversation) IsOpen() bool {
	return c.Status == ConversationStatusOpen
}

// HasTag reports whether the conversation already carries the given tag.
func (c *Conversation) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}

	return false
}
