package registry

import (
	"log/slog"
	"testing"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ValidateDescriptor_BuiltinKinds(t *testing.T) {
	reg := NewRegistry(slog.Default())

	descriptors := []string{
		"reply:hello",
		"escalate",
		"tag:vip",
		"start_flow:welcome",
		"search_kb",
		"search_kb:pricing",
	}

	for _, descriptor := range descriptors {
		action, err := reg.ValidateDescriptor(descriptor)
		require.NoError(t, err, descriptor)
		assert.NotNil(t, action)
	}
}

func TestRegistry_ValidateDescriptor_RejectsUnknownKind(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.ValidateDescriptor("detonate:now")
	assert.ErrorIs(t, err, models.ErrUnknownActionKind)
}

func TestRegistry_ValidateDescriptor_RejectsEmpty(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.ValidateDescriptor("")
	assert.ErrorIs(t, err, models.ErrEmptyActionDescriptor)
}

func TestRegistry_ValidateDescriptor_SchemaViolation(t *testing.T) {
	reg := NewRegistry(slog.Default())

	// Tag labels longer than the schema allows are rejected even though the
	// descriptor parses.
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'x'
	}

	_, err := reg.ValidateDescriptor("tag:" + string(long))
	assert.Error(t, err)
}

func TestRegistry_AvailableKinds(t *testing.T) {
	reg := NewRegistry(slog.Default())

	kinds := reg.AvailableKinds()
	assert.Len(t, kinds, 5)
	assert.Contains(t, kinds, models.ActionKindReply)
	assert.Contains(t, kinds, models.ActionKindEscalate)
}

func TestRegistry_HealthCheck(t *testing.T) {
	reg := NewRegistry(slog.Default())

	message, ok := reg.HealthCheck()
	assert.True(t, ok)
	assert.NotEmpty(t, message)
}
