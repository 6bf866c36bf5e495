package models

import "time"

// Campaign starts a flow for every open, bot-mode conversation of a platform
// on a cron schedule. Delivery rides the normal outbound message path.
type Campaign struct {
	ID       string `json:"id"`
	Name     string `json:"name"     validate:"required,min=3"`
	CronExpr string `json:"cron"     validate:"required"`
	FlowID   string `json:"flow_id"  validate:"required"`
	Platform string `json:"platform" validate:"required"`
	Enabled  bool   `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
