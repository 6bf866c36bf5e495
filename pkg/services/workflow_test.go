package services

import (
	"log/slog"
	"testing"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/persistence/file"
	"github.com/botgrid/botgrid/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflowService(t *testing.T) *Workflow {
	t.Helper()

	return NewWorkflow(file.NewPersistence(t.TempDir()), registry.NewRegistry(slog.Default()))
}

func TestWorkflow_Create(t *testing.T) {
	service := newWorkflowService(t)

	created, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "Pricing Shortcut",
		Keywords: []string{"price", "cost"},
		Action:   "reply:See https://example.com/pricing",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Enabled)
	assert.Equal(t, 0, created.Position)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestWorkflow_Create_AppendsToEvaluationOrder(t *testing.T) {
	service := newWorkflowService(t)

	first, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "First Rule",
		Keywords: []string{"a"},
		Action:   "escalate",
	})
	require.NoError(t, err)

	second, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "Second Rule",
		Keywords: []string{"b"},
		Action:   "escalate",
	})
	require.NoError(t, err)

	assert.Greater(t, second.Position, first.Position)
}

func TestWorkflow_Create_RejectsInvalidDescriptor(t *testing.T) {
	service := newWorkflowService(t)

	_, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "Broken Rule",
		Keywords: []string{"boom"},
		Action:   "detonate:now",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestWorkflow_Create_RequiresKeywords(t *testing.T) {
	service := newWorkflowService(t)

	_, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "No Keywords",
		Keywords: []string{"  ", ""},
		Action:   "escalate",
	})
	assert.ErrorIs(t, err, ErrRuleKeywordsRequired)
}

func TestWorkflow_Update_Partial(t *testing.T) {
	service := newWorkflowService(t)

	created, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "Pricing Shortcut",
		Keywords: []string{"price"},
		Action:   "reply:old text",
	})
	require.NoError(t, err)

	enabled := false
	position := 5
	updated, err := service.Update(t.Context(), created.ID, UpdateRuleRequest{
		Position: &position,
		Enabled:  &enabled,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, updated.Position)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "reply:old text", updated.Action)
	assert.Equal(t, "Pricing Shortcut", updated.Name)
}

func TestWorkflow_Update_RejectsInvalidDescriptor(t *testing.T) {
	service := newWorkflowService(t)

	created, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "Pricing Shortcut",
		Keywords: []string{"price"},
		Action:   "reply:ok",
	})
	require.NoError(t, err)

	broken := "reply:"
	_, err = service.Update(t.Context(), created.ID, UpdateRuleRequest{Action: &broken})
	require.Error(t, err)

	loaded, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "reply:ok", loaded.Action)
}

func TestWorkflow_Delete(t *testing.T) {
	service := newWorkflowService(t)

	created, err := service.Create(t.Context(), &models.WorkflowRule{
		Name:     "Pricing Shortcut",
		Keywords: []string{"price"},
		Action:   "escalate",
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), created.ID))

	_, err = service.FetchByID(t.Context(), created.ID)
	assert.True(t, persistence.IsRuleNotFound(err))
}
