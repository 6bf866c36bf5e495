package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
)

// CampaignRepository stores one JSON file per campaign.
type CampaignRepository struct {
	store *Persistence
}

func (cr *CampaignRepository) List(_ context.Context) ([]*models.Campaign, error) {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	root := os.DirFS(cr.store.dir("campaigns"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign files: %w", err)
	}

	campaigns := make([]*models.Campaign, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		campaign, err := cr.getLocked(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		campaigns = append(campaigns, campaign)
	}

	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].CreatedAt.Before(campaigns[j].CreatedAt) })

	return campaigns, nil
}

func (cr *CampaignRepository) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	return cr.getLocked(id)
}

func (cr *CampaignRepository) getLocked(id string) (*models.Campaign, error) {
	campaign := &models.Campaign{}

	err := cr.store.readJSON(cr.path(id), campaign)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("campaign %s: %w", id, persistence.ErrCampaignNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %s: %w", id, err)
	}

	return campaign, nil
}

func (cr *CampaignRepository) Save(_ context.Context, campaign *models.Campaign) error {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	if err := cr.store.writeJSON(cr.path(campaign.ID), campaign); err != nil {
		return fmt.Errorf("failed to save campaign %s: %w", campaign.ID, err)
	}

	return nil
}

func (cr *CampaignRepository) Delete(_ context.Context, id string) error {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	err := os.Remove(cr.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("campaign %s: %w", id, persistence.ErrCampaignNotFound)
	}

	return err
}

func (cr *CampaignRepository) path(id string) string {
	return cr.store.dir("campaigns", id+".json")
}
