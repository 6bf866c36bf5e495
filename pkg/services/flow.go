package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/registry"
	"github.com/google/uuid"
)

// Flow manages conversation flow graphs. Graph integrity (unique node ids, no
// dangling next references) is enforced at save time so operators fail fast;
// run-time dangling references are the interpreter's fail-safe concern.
type Flow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

// NewFlow creates a new flow service.
func NewFlow(persistence persistence.Persistence, registry *registry.Registry) *Flow {
	return &Flow{
		persistence: persistence,
		registry:    registry,
	}
}

// List returns all flows.
func (f *Flow) List(ctx context.Context) ([]*models.Flow, error) {
	return f.persistence.Flows().List(ctx)
}

// FetchByID returns a single flow.
func (f *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	return f.persistence.Flows().GetByID(ctx, id)
}

// Create validates and persists a new flow at version 1.
func (f *Flow) Create(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if err := f.validate(flow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	flow.ID = uuid.New().String()
	flow.Version = 1
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if err := f.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, err
	}

	return flow, nil
}

// Update replaces the flow's name and nodes and bumps the version stamp.
// In-flight instances keep the version they started with and terminate
// fail-safe if their current node disappeared.
func (f *Flow) Update(ctx context.Context, id string, name string, nodes []*models.FlowNode) (*models.Flow, error) {
	flow, err := f.persistence.Flows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != "" {
		flow.Name = name
	}

	if nodes != nil {
		flow.Nodes = nodes
	}

	if err := f.validate(flow); err != nil {
		return nil, err
	}

	flow.Version++
	flow.UpdatedAt = time.Now().UTC()

	if err := f.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, err
	}

	return flow, nil
}

// Delete removes a flow. Conversations with an in-flight instance of it
// terminate fail-safe on their next message.
func (f *Flow) Delete(ctx context.Context, id string) error {
	return f.persistence.Flows().Delete(ctx, id)
}

func (f *Flow) validate(flow *models.Flow) error {
	if strings.TrimSpace(flow.Name) == "" {
		return ErrFlowNameRequired
	}

	if err := flow.Validate(); err != nil {
		return err
	}

	// Action node labels are operator-authored descriptors; check them
	// against the registry so a typo fails at save time.
	for _, node := range flow.Nodes {
		if node.Type != models.NodeTypeAction {
			continue
		}

		if _, err := f.registry.ValidateDescriptor(node.Label); err != nil {
			return fmt.Errorf("%w: node %q: %w", ErrInvalidRequest, node.ID, err)
		}
	}

	return nil
}
