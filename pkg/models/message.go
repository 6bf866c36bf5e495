package models

import "time"

// MessageSender identifies who produced a message.
type MessageSender string

const (
	MessageSenderUser  MessageSender = "user"
	MessageSenderBot   MessageSender = "bot"
	MessageSenderAgent MessageSender = "agent"
)

// Message is a single entry in a conversation transcript. Messages are
// append-only and immutable once created.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversation_id"`
	Sender         MessageSender `json:"sender"  validate:"required,oneof=user bot agent"`
	Content        string        `json:"content" validate:"required"`

	// Denormalized from the conversation so channel adapters can query the
	// transcript without a join.
	Platform       string `json:"platform"`
	ExternalUserID string `json:"external_user_id"`

	CreatedAt time.Time `json:"created_at"`
}
