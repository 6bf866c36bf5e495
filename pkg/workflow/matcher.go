// Package workflow evaluates keyword-triggered automation rules against
// inbound messages.
package workflow

import (
	"context"
	"log/slog"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
)

// Matcher performs the linear, deterministic rule scan. Rules are reloaded
// per call so create/update/delete take effect for the next inbound message
// without touching an in-flight evaluation.
type Matcher struct {
	rules  persistence.WorkflowRuleRepository
	logger *slog.Logger
}

func NewMatcher(rules persistence.WorkflowRuleRepository, logger *slog.Logger) *Matcher {
	return &Matcher{
		rules:  rules,
		logger: logger.With("module", "rule_matcher"),
	}
}

// MatchResult pairs the winning rule with its parsed action.
type MatchResult struct {
	Rule   *models.WorkflowRule
	Action *models.Action
}

// Match returns the first enabled rule, in configured position order, with at
// least one keyword hit in text. Rule order decides ties; keyword order
// within a rule never matters. Returns nil when nothing matches.
func (m *Matcher) Match(ctx context.Context, text string) (*MatchResult, error) {
	rules, err := m.rules.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		if !rule.Matches(text) {
			continue
		}

		action, err := rule.ParsedAction()
		if err != nil {
			// A rule with a broken descriptor slipped past save-time
			// validation; skip it rather than blocking the scan.
			m.logger.WarnContext(ctx, "Skipping rule with invalid action",
				"rule_id", rule.ID, "action", rule.Action, "error", err)

			continue
		}

		return &MatchResult{Rule: rule, Action: action}, nil
	}

	return nil, nil
}
