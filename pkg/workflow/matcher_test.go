package workflow

import (
	"log/slog"
	"testing"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveRule(t *testing.T, store *file.Persistence, rule *models.WorkflowRule) {
	t.Helper()

	if rule.ID == "" {
		rule.ID = rule.Name
	}

	rule.Enabled = true
	require.NoError(t, store.Rules().Save(t.Context(), rule))
}

func TestMatcher_FirstRuleInOrderWins(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	matcher := NewMatcher(store.Rules(), slog.Default())

	// Both rules match the text; position order decides.
	saveRule(t, store, &models.WorkflowRule{
		Name:     "pricing",
		Keywords: []string{"price"},
		Action:   "reply:See our pricing page",
		Position: 0,
	})
	saveRule(t, store, &models.WorkflowRule{
		Name:     "handover",
		Keywords: []string{"price", "agent"},
		Action:   "escalate",
		Position: 1,
	})

	match, err := matcher.Match(t.Context(), "what is the price?")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "pricing", match.Rule.Name)
	assert.Equal(t, models.ActionKindReply, match.Action.Kind)
}

func TestMatcher_OrderDecidesNotKeywordOrder(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	matcher := NewMatcher(store.Rules(), slog.Default())

	// The second rule lists the matching keyword first; the first rule lists
	// it last. Rule order still decides.
	saveRule(t, store, &models.WorkflowRule{
		Name:     "first",
		Keywords: []string{"foo", "bar", "refund"},
		Action:   "reply:first wins",
		Position: 0,
	})
	saveRule(t, store, &models.WorkflowRule{
		Name:     "second",
		Keywords: []string{"refund"},
		Action:   "reply:second wins",
		Position: 1,
	})

	match, err := matcher.Match(t.Context(), "refund please")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "first", match.Rule.Name)
}

func TestMatcher_NoMatch(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	matcher := NewMatcher(store.Rules(), slog.Default())

	saveRule(t, store, &models.WorkflowRule{
		Name:     "pricing",
		Keywords: []string{"price"},
		Action:   "reply:See our pricing page",
	})

	match, err := matcher.Match(t.Context(), "hello there")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatcher_SkipsDisabledRules(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	matcher := NewMatcher(store.Rules(), slog.Default())

	rule := &models.WorkflowRule{
		ID:       "off",
		Name:     "off",
		Keywords: []string{"help"},
		Action:   "escalate",
	}
	require.NoError(t, store.Rules().Save(t.Context(), rule))

	match, err := matcher.Match(t.Context(), "help me")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatcher_SkipsRuleWithBrokenDescriptor(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	matcher := NewMatcher(store.Rules(), slog.Default())

	saveRule(t, store, &models.WorkflowRule{
		Name:     "broken",
		Keywords: []string{"help"},
		Action:   "detonate:now",
		Position: 0,
	})
	saveRule(t, store, &models.WorkflowRule{
		Name:     "fallback",
		Keywords: []string{"help"},
		Action:   "escalate",
		Position: 1,
	})

	match, err := matcher.Match(t.Context(), "help me")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "fallback", match.Rule.Name)
}

func TestMatcher_MutationTakesEffectNextMessage(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	matcher := NewMatcher(store.Rules(), slog.Default())

	match, err := matcher.Match(t.Context(), "refund please")
	require.NoError(t, err)
	require.Nil(t, match)

	saveRule(t, store, &models.WorkflowRule{
		Name:     "refunds",
		Keywords: []string{"refund"},
		Action:   "tag:refund-request",
	})

	match, err = matcher.Match(t.Context(), "refund please")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, models.ActionKindTag, match.Action.Kind)
	assert.Equal(t, "refund-request", match.Action.Label)
}
