// Package campaign runs cron-scheduled flow campaigns against open
// conversations.
package campaign

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/botgrid/botgrid/pkg/eventbus"
	"github.com/botgrid/botgrid/pkg/events"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/router"
	"github.com/robfig/cron/v3"
)

// Scheduler owns one cron entry per enabled campaign. Reload rebuilds the
// schedule after campaign CRUD; ticks push the campaign's flow into every
// open bot-mode conversation on the target platform.
type Scheduler struct {
	persistence persistence.Persistence
	router      *router.Router
	eventBus    eventbus.EventBus
	logger      *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(persistence persistence.Persistence, rtr *router.Router, eventBus eventbus.EventBus, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence: persistence,
		router:      rtr,
		eventBus:    eventBus,
		logger:      logger.With("module", "campaign_scheduler"),
	}
}

// Start loads the campaigns and begins ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	return s.Reload(ctx)
}

// Reload replaces the running schedule with the current campaign set.
func (s *Scheduler) Reload(ctx context.Context) error {
	campaigns, err := s.persistence.Campaigns().List(ctx)
	if err != nil {
		return err
	}

	next := cron.New()

	for _, campaign := range campaigns {
		if !campaign.Enabled {
			continue
		}

		c := campaign

		_, err := next.AddFunc(c.CronExpr, func() {
			s.trigger(context.Background(), c.ID)
		})
		if err != nil {
			// Save-time validation should have caught this; skip rather
			// than failing every other campaign.
			s.logger.ErrorContext(ctx, "Skipping campaign with invalid cron expression",
				"campaign_id", c.ID, "cron", c.CronExpr, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}

	s.cron = next
	s.cron.Start()

	s.logger.InfoContext(ctx, "Campaign schedule loaded", "campaigns", len(campaigns))

	return nil
}

// Stop halts the schedule and waits for running triggers to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}

	stopCtx := s.cron.Stop()
	s.cron = nil

	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("Timed out waiting for campaign triggers to finish")
	}
}

// trigger pushes the campaign's flow into every eligible conversation. The
// campaign is re-read so a concurrent disable takes effect immediately.
func (s *Scheduler) trigger(ctx context.Context, campaignID string) {
	campaign, err := s.persistence.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Campaign vanished before trigger", "campaign_id", campaignID, "error", err)

		return
	}

	if !campaign.Enabled {
		return
	}

	conversations, err := s.persistence.Conversations().ListOpenBotByPlatform(ctx, campaign.Platform)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list campaign targets",
			"campaign_id", campaign.ID, "platform", campaign.Platform, "error", err)

		return
	}

	reached := 0

	for _, conversation := range conversations {
		if _, err := s.router.PushFlow(ctx, conversation.ID, campaign.FlowID); err != nil {
			// A conversation may have been closed or handed off since the
			// listing; skip it.
			s.logger.DebugContext(ctx, "Campaign skipped conversation",
				"campaign_id", campaign.ID, "conversation_id", conversation.ID, "error", err)

			continue
		}

		reached++
	}

	s.logger.InfoContext(ctx, "Campaign triggered",
		"campaign_id", campaign.ID, "flow_id", campaign.FlowID, "conversations", reached)

	if s.eventBus != nil {
		event := events.CampaignTriggered{
			BaseEvent: events.BaseEvent{
				ID:        s.eventBus.GenerateID(),
				Type:      events.CampaignTriggeredEvent,
				Timestamp: time.Now().UTC(),
			},
			CampaignID:    campaign.ID,
			FlowID:        campaign.FlowID,
			Conversations: reached,
		}

		if err := s.eventBus.Publish(ctx, "campaign-"+campaign.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish campaign event",
				"campaign_id", campaign.ID, "error", err)
		}
	}
}
