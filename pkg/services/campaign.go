package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Campaign manages scheduled flow campaigns.
type Campaign struct {
	persistence persistence.Persistence
}

// NewCampaign creates a new campaign service.
func NewCampaign(persistence persistence.Persistence) *Campaign {
	return &Campaign{
		persistence: persistence,
	}
}

// List returns all campaigns.
func (c *Campaign) List(ctx context.Context) ([]*models.Campaign, error) {
	return c.persistence.Campaigns().List(ctx)
}

// FetchByID returns a single campaign.
func (c *Campaign) FetchByID(ctx context.Context, id string) (*models.Campaign, error) {
	return c.persistence.Campaigns().GetByID(ctx, id)
}

// Create validates and persists a new campaign.
func (c *Campaign) Create(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	if err := c.validate(ctx, campaign); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	campaign.ID = uuid.New().String()
	campaign.Enabled = true
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	if err := c.persistence.Campaigns().Save(ctx, campaign); err != nil {
		return nil, err
	}

	return campaign, nil
}

// UpdateCampaignRequest carries the mutable campaign fields; nil means unchanged.
type UpdateCampaignRequest struct {
	Name     *string
	CronExpr *string
	FlowID   *string
	Platform *string
	Enabled  *bool
}

// Update applies a partial update and persists the campaign.
func (c *Campaign) Update(ctx context.Context, id string, req UpdateCampaignRequest) (*models.Campaign, error) {
	campaign, err := c.persistence.Campaigns().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}

	if req.CronExpr != nil {
		campaign.CronExpr = *req.CronExpr
	}

	if req.FlowID != nil {
		campaign.FlowID = *req.FlowID
	}

	if req.Platform != nil {
		campaign.Platform = *req.Platform
	}

	if req.Enabled != nil {
		campaign.Enabled = *req.Enabled
	}

	if err := c.validate(ctx, campaign); err != nil {
		return nil, err
	}

	campaign.UpdatedAt = time.Now().UTC()

	if err := c.persistence.Campaigns().Save(ctx, campaign); err != nil {
		return nil, err
	}

	return campaign, nil
}

// Delete removes a campaign; the scheduler drops it on its next reload.
func (c *Campaign) Delete(ctx context.Context, id string) error {
	return c.persistence.Campaigns().Delete(ctx, id)
}

func (c *Campaign) validate(ctx context.Context, campaign *models.Campaign) error {
	if strings.TrimSpace(campaign.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrInvalidRequest)
	}

	if strings.TrimSpace(campaign.Platform) == "" {
		return fmt.Errorf("%w: campaign platform is required", ErrInvalidRequest)
	}

	if _, err := cron.ParseStandard(campaign.CronExpr); err != nil {
		return fmt.Errorf("%w: %w", ErrCampaignCronInvalid, err)
	}

	// The target flow must exist at save time; deleting it later degrades
	// to a no-op trigger rather than an error.
	if _, err := c.persistence.Flows().GetByID(ctx, campaign.FlowID); err != nil {
		return err
	}

	return nil
}
