// Package events defines event types and structures for conversation
// lifecycle notifications.
package events

import (
	"time"

	"github.com/botgrid/botgrid/pkg/models"
)

type EventType string

// Topic carries all conversation lifecycle events.
const Topic = "botgrid.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ConversationCreatedEvent EventType = "conversation.created"
	MessageReceivedEvent     EventType = "message.received"
	MessageSentEvent         EventType = "message.sent"
	HandoffChangedEvent      EventType = "handoff.changed"
	FlowStartedEvent         EventType = "flow.started"
	FlowCompletedEvent       EventType = "flow.completed"
	CampaignTriggeredEvent   EventType = "campaign.triggered"
)

type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID int64     `json:"conversation_id,omitempty"`
}

type ConversationCreated struct {
	BaseEvent

	Platform       string `json:"platform"`
	ExternalUserID string `json:"external_user_id"`
}

func (e ConversationCreated) GetType() EventType {
	return ConversationCreatedEvent
}

type MessageReceived struct {
	BaseEvent

	MessageID int64  `json:"message_id"`
	Content   string `json:"content"`
}

func (e MessageReceived) GetType() EventType {
	return MessageReceivedEvent
}

// MessageSent is published for every outbound reply, whatever produced it.
// Channel adapters subscribe to this event to deliver the reply to the user.
type MessageSent struct {
	BaseEvent

	MessageID int64                `json:"message_id"`
	Sender    models.MessageSender `json:"sender"`
	Content   string               `json:"content"`
	Platform  string               `json:"platform"`
}

func (e MessageSent) GetType() EventType {
	return MessageSentEvent
}

type HandoffChanged struct {
	BaseEvent

	Enabled bool `json:"enabled"`
}

func (e HandoffChanged) GetType() EventType {
	return HandoffChangedEvent
}

type FlowStarted struct {
	BaseEvent

	FlowID      string `json:"flow_id"`
	FlowVersion int    `json:"flow_version"`
}

func (e FlowStarted) GetType() EventType {
	return FlowStartedEvent
}

type FlowCompleted struct {
	BaseEvent

	FlowID string `json:"flow_id"`
}

func (e FlowCompleted) GetType() EventType {
	return FlowCompletedEvent
}

type CampaignTriggered struct {
	BaseEvent

	CampaignID    string `json:"campaign_id"`
	FlowID        string `json:"flow_id"`
	Conversations int    `json:"conversations"`
}

func (e CampaignTriggered) GetType() EventType {
	return CampaignTriggeredEvent
}
