// Package registry catalogs the action kinds the engine implements and
// validates operator-authored action descriptors against their schemas.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Registry maps action kinds to the JSON schema their parsed payload must
// satisfy. Rules and flow action nodes are checked here at save time so bad
// descriptors fail fast for operators instead of at routing time.
type Registry struct {
	logger  *slog.Logger
	schemas map[models.ActionKind]map[string]any
}

func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		logger:  logger,
		schemas: make(map[models.ActionKind]map[string]any),
	}
	r.registerDefaults()

	return r
}

// RegisterKind adds or replaces the schema for an action kind.
func (r *Registry) RegisterKind(kind models.ActionKind, schema map[string]any) {
	r.schemas[kind] = schema
}

// AvailableKinds lists the registered action kinds.
func (r *Registry) AvailableKinds() []models.ActionKind {
	kinds := make([]models.ActionKind, 0, len(r.schemas))
	for kind := range r.schemas {
		kinds = append(kinds, kind)
	}

	return kinds
}

// ValidateDescriptor parses an action descriptor and validates the resulting
// payload against the schema registered for its kind.
func (r *Registry) ValidateDescriptor(descriptor string) (*models.Action, error) {
	action, err := models.ParseAction(descriptor)
	if err != nil {
		return nil, err
	}

	schema, ok := r.schemas[action.Kind]
	if !ok {
		return nil, fmt.Errorf("action kind %q not registered", action.Kind)
	}

	payload := map[string]any{
		"kind":    string(action.Kind),
		"text":    action.Text,
		"label":   action.Label,
		"flow_id": action.FlowID,
		"query":   action.Query,
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, err
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("action %q invalid: %s", descriptor, strings.Join(details, "; "))
	}

	return action, nil
}

// HealthCheck reports whether the registry carries any action kinds.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.schemas) == 0 {
		return "No action kinds registered", false
	}

	return fmt.Sprintf("%d action kinds registered", len(r.schemas)), true
}

func (r *Registry) registerDefaults() {
	r.RegisterKind(models.ActionKindReply, map[string]any{
		"type":     "object",
		"required": []string{"text"},
		"properties": map[string]any{
			"text": map[string]any{"type": "string", "minLength": 1},
		},
	})

	r.RegisterKind(models.ActionKindEscalate, map[string]any{
		"type": "object",
	})

	r.RegisterKind(models.ActionKindTag, map[string]any{
		"type":     "object",
		"required": []string{"label"},
		"properties": map[string]any{
			"label": map[string]any{"type": "string", "minLength": 1, "maxLength": 64},
		},
	})

	r.RegisterKind(models.ActionKindStartFlow, map[string]any{
		"type":     "object",
		"required": []string{"flow_id"},
		"properties": map[string]any{
			"flow_id": map[string]any{"type": "string", "minLength": 1},
		},
	})

	r.RegisterKind(models.ActionKindSearchKB, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	})
}
