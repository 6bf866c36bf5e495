package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/registry"
	"github.com/google/uuid"
)

// Workflow manages the keyword rule set. Mutations take effect for the next
// inbound message only; the matcher reloads rules per evaluation.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

// NewWorkflow creates a new workflow rule service.
func NewWorkflow(persistence persistence.Persistence, registry *registry.Registry) *Workflow {
	return &Workflow{
		persistence: persistence,
		registry:    registry,
	}
}

// List returns all rules in evaluation order.
func (w *Workflow) List(ctx context.Context) ([]*models.WorkflowRule, error) {
	return w.persistence.Rules().List(ctx)
}

// FetchByID returns a single rule.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowRule, error) {
	return w.persistence.Rules().GetByID(ctx, id)
}

// Create validates and persists a new rule at the end of the evaluation
// order.
func (w *Workflow) Create(ctx context.Context, rule *models.WorkflowRule) (*models.WorkflowRule, error) {
	if err := w.validate(rule); err != nil {
		return nil, err
	}

	existing, err := w.persistence.Rules().List(ctx)
	if err != nil {
		return nil, err
	}

	position := 0
	for _, r := range existing {
		if r.Position >= position {
			position = r.Position + 1
		}
	}

	now := time.Now().UTC()
	rule.ID = uuid.New().String()
	rule.Position = position
	rule.Enabled = true
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := w.persistence.Rules().Save(ctx, rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// UpdateRuleRequest carries the mutable rule fields; nil means unchanged.
type UpdateRuleRequest struct {
	Name     *string
	Keywords []string
	Action   *string
	Position *int
	Enabled  *bool
}

// Update applies a partial update and persists the rule.
func (w *Workflow) Update(ctx context.Context, id string, req UpdateRuleRequest) (*models.WorkflowRule, error) {
	rule, err := w.persistence.Rules().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}

	if req.Keywords != nil {
		rule.Keywords = req.Keywords
	}

	if req.Action != nil {
		rule.Action = *req.Action
	}

	if req.Position != nil {
		rule.Position = *req.Position
	}

	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := w.validate(rule); err != nil {
		return nil, err
	}

	rule.UpdatedAt = time.Now().UTC()

	if err := w.persistence.Rules().Save(ctx, rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// Delete removes a rule. The change applies from the next inbound message.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.persistence.Rules().Delete(ctx, id)
}

func (w *Workflow) validate(rule *models.WorkflowRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return ErrRuleNameRequired
	}

	keywords := make([]string, 0, len(rule.Keywords))

	for _, keyword := range rule.Keywords {
		if strings.TrimSpace(keyword) != "" {
			keywords = append(keywords, keyword)
		}
	}

	if len(keywords) == 0 {
		return ErrRuleKeywordsRequired
	}

	rule.Keywords = keywords

	if _, err := w.registry.ValidateDescriptor(rule.Action); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return nil
}
