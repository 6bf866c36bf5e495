// Package web provides HTTP request and response types for the orchestration API.
package web

import "github.com/botgrid/botgrid/pkg/models"

// InboundMessageRequest is the uniform ingestion payload used by every
// channel adapter.
type InboundMessageRequest struct {
	Platform       string `json:"platform"         validate:"required"`
	ExternalUserID string `json:"external_user_id" validate:"required"`
	Text           string `json:"text"             validate:"required"`
}

// SetHandoffRequest toggles human mode for a conversation.
type SetHandoffRequest struct {
	Enabled bool `json:"enabled"`
}

// SetHandoffResponse mirrors the admin client's expectation.
type SetHandoffResponse struct {
	HandoffEnabled bool `json:"handoff_enabled"`
}

// AgentReplyRequest carries a human agent's message.
type AgentReplyRequest struct {
	Message string `json:"message" validate:"required"`
}

// AgentReplyResponse acknowledges a recorded agent reply.
type AgentReplyResponse struct {
	Status    string `json:"status"`
	MessageID int64  `json:"message_id"`
}

// CreateRuleRequest creates a workflow rule at the end of the evaluation order.
type CreateRuleRequest struct {
	Name     string   `json:"name"     validate:"required,min=3"`
	Keywords []string `json:"keywords" validate:"required,min=1,dive,required"`
	Action   string   `json:"action"   validate:"required"`
}

// UpdateRuleRequest partially updates a workflow rule.
type UpdateRuleRequest struct {
	Name     *string  `json:"name,omitempty"     validate:"omitempty,min=3"`
	Keywords []string `json:"keywords,omitempty" validate:"omitempty,min=1,dive,required"`
	Action   *string  `json:"action,omitempty"   validate:"omitempty"`
	Position *int     `json:"position,omitempty" validate:"omitempty,min=0"`
	Enabled  *bool    `json:"enabled,omitempty"`
}

// FlowNodeRequest is the wire shape of one flow node.
type FlowNodeRequest struct {
	ID       string                   `json:"id"    validate:"required"`
	Type     string                   `json:"type"  validate:"required,oneof=message condition action end"`
	Label    string                   `json:"label"`
	Next     string                   `json:"next,omitempty"`
	Branches []models.ConditionBranch `json:"branches,omitempty"`
}

// CreateFlowRequest creates a flow; node references are validated before
// persistence.
type CreateFlowRequest struct {
	Name  string            `json:"name"  validate:"required,min=3"`
	Nodes []FlowNodeRequest `json:"nodes"`
}

// UpdateFlowRequest replaces a flow's name and/or nodes.
type UpdateFlowRequest struct {
	Name  string            `json:"name,omitempty"  validate:"omitempty,min=3"`
	Nodes []FlowNodeRequest `json:"nodes,omitempty"`
}

// CreateCampaignRequest creates a scheduled flow campaign.
type CreateCampaignRequest struct {
	Name     string `json:"name"     validate:"required,min=3"`
	CronExpr string `json:"cron"     validate:"required"`
	FlowID   string `json:"flow_id"  validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

// UpdateCampaignRequest partially updates a campaign.
type UpdateCampaignRequest struct {
	Name     *string `json:"name,omitempty"     validate:"omitempty,min=3"`
	CronExpr *string `json:"cron,omitempty"     validate:"omitempty"`
	FlowID   *string `json:"flow_id,omitempty"  validate:"omitempty"`
	Platform *string `json:"platform,omitempty" validate:"omitempty"`
	Enabled  *bool   `json:"enabled,omitempty"`
}

// toModelNodes converts wire nodes into domain nodes.
func toModelNodes(nodes []FlowNodeRequest) []*models.FlowNode {
	if nodes == nil {
		return nil
	}

	converted := make([]*models.FlowNode, 0, len(nodes))

	for _, node := range nodes {
		converted = append(converted, &models.FlowNode{
			ID:       node.ID,
			Type:     models.NodeType(node.Type),
			Label:    node.Label,
			Next:     node.Next,
			Branches: node.Branches,
		})
	}

	return converted
}
