// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrConversationNotFound indicates no conversation exists for the given id.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationClosed indicates an append was attempted on a closed conversation.
	ErrConversationClosed = errors.New("conversation closed")

	// ErrRuleNotFound indicates no workflow rule exists for the given id.
	ErrRuleNotFound = errors.New("workflow rule not found")

	// ErrFlowNotFound indicates no flow exists for the given id.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrCampaignNotFound indicates no campaign exists for the given id.
	ErrCampaignNotFound = errors.New("campaign not found")
)

// ConversationError wraps conversation-related errors with operation context.
type ConversationError struct {
	Op             string // Operation being performed (e.g., "Resolve", "Update")
	ConversationID int64  // Conversation id if known
	Identity       string // platform/external-user pair if the id is not known yet
	Err            error  // Underlying error
}

func (e *ConversationError) Error() string {
	target := fmt.Sprintf("conversation %d", e.ConversationID)
	if e.Identity != "" {
		target = "conversation " + e.Identity
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, target, e.Err)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

func (e *ConversationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewConversationError creates a conversation error with context.
func NewConversationError(op string, conversationID int64, err error) *ConversationError {
	return &ConversationError{
		Op:             op,
		ConversationID: conversationID,
		Err:            err,
	}
}

// FlowError wraps flow-related errors with operation context.
type FlowError struct {
	Op     string
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsConversationNotFound checks if an error indicates a missing conversation.
func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsConversationClosed checks if an error indicates an append to a closed conversation.
func IsConversationClosed(err error) bool {
	return errors.Is(err, ErrConversationClosed)
}

// IsRuleNotFound checks if an error indicates a missing workflow rule.
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsFlowNotFound checks if an error indicates a missing flow.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsCampaignNotFound checks if an error indicates a missing campaign.
func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}
