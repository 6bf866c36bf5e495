// Package persistence provides the data storage abstraction layer for
// conversations, transcripts, workflow rules, flows and campaigns.
package persistence

import (
	"context"

	"github.com/botgrid/botgrid/pkg/models"
)

// Persistence aggregates the repositories backing the orchestration core.
type Persistence interface {
	Conversations() ConversationRepository
	Messages() MessageRepository
	Rules() WorkflowRuleRepository
	Flows() FlowRepository
	Campaigns() CampaignRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListConversationsOptions filters and paginates conversation listings.
type ListConversationsOptions struct {
	Limit    int
	Offset   int
	Platform string
	Status   *models.ConversationStatus
}

// ConversationListResult is a page of conversations plus paging metadata.
type ConversationListResult struct {
	Conversations []*models.Conversation `json:"conversations"`
	TotalCount    int64                  `json:"total_count"`
	HasNextPage   bool                   `json:"has_next_page"`
}

// ConversationRepository stores conversation records keyed both by numeric id
// and by (platform, external user id) identity.
type ConversationRepository interface {
	// Resolve returns the conversation for the identity, creating it when
	// absent. The get-or-create is atomic: concurrent calls for the same
	// identity observe exactly one conversation. The second return reports
	// whether this call created it.
	Resolve(ctx context.Context, identity models.ConversationIdentity) (*models.Conversation, bool, error)

	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	Update(ctx context.Context, conversation *models.Conversation) error
	List(ctx context.Context, opts ListConversationsOptions) (*ConversationListResult, error)

	// ListOpenBotByPlatform returns open conversations in bot mode for a
	// platform; the campaign scheduler targets these.
	ListOpenBotByPlatform(ctx context.Context, platform string) ([]*models.Conversation, error)
}

// MessageRepository is the append-only transcript store.
type MessageRepository interface {
	// Append assigns the message id and timestamp and persists it.
	Append(ctx context.Context, message *models.Message) (*models.Message, error)

	// ListByConversation returns the transcript in creation order. A limit
	// of 0 means no limit; a positive limit keeps the most recent messages.
	ListByConversation(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error)
}

// WorkflowRuleRepository stores keyword rules. List returns rules in
// evaluation (position) order.
type WorkflowRuleRepository interface {
	List(ctx context.Context) ([]*models.WorkflowRule, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowRule, error)
	Save(ctx context.Context, rule *models.WorkflowRule) error
	Delete(ctx context.Context, id string) error
}

// FlowRepository stores flow graphs.
type FlowRepository interface {
	List(ctx context.Context) ([]*models.Flow, error)
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error
}

// CampaignRepository stores scheduled campaigns.
type CampaignRepository interface {
	List(ctx context.Context) ([]*models.Campaign, error)
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	Delete(ctx context.Context, id string) error
}
