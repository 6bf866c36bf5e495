package models

import (
	"strings"
	"time"
)

// WorkflowRule is a keyword-triggered shortcut that bypasses generative reply
// logic with a fixed action. Rules are evaluated in Position order; the first
// rule with any keyword hit wins.
type WorkflowRule struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"     validate:"required,min=3"`
	Keywords []string `json:"keywords" validate:"required,min=1,dive,required"`

	// Action is the operator-authored descriptor ("reply:<text>",
	// "escalate", "tag:<label>", "start_flow:<id>", "search_kb").
	Action string `json:"action" validate:"required"`

	// Position is the evaluation order, assigned on creation in insertion
	// order and adjustable on update.
	Position int `json:"position"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether any configured keyword occurs in text,
// case-insensitively. Keyword order within a rule is irrelevant.
func (r *WorkflowRule) Matches(text string) bool {
	lowered := strings.ToLower(text)

	for _, keyword := range r.Keywords {
		if keyword == "" {
			continue
		}

		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}

	return false
}

// ParsedAction returns the typed action for this rule.
func (r *WorkflowRule) ParsedAction() (*Action, error) {
	return ParseAction(r.Action)
}
