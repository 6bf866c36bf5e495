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

// FlowRepository stores one JSON file per flow graph.
type FlowRepository struct {
	store *Persistence
}

// List returns all flows sorted by creation time.
func (fr *FlowRepository) List(_ context.Context) ([]*models.Flow, error) {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	root := os.DirFS(fr.store.dir("flows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list flow files: %w", err)
	}

	flows := make([]*models.Flow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		flow, err := fr.getLocked(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		flows = append(flows, flow)
	}

	sort.Slice(flows, func(i, j int) bool { return flows[i].CreatedAt.Before(flows[j].CreatedAt) })

	return flows, nil
}

func (fr *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	return fr.getLocked(id)
}

func (fr *FlowRepository) getLocked(id string) (*models.Flow, error) {
	flow := &models.Flow{}

	err := fr.store.readJSON(fr.path(id), flow)
	if os.IsNotExist(err) {
		return nil, &persistence.FlowError{Op: "GetByID", FlowID: id, Err: persistence.ErrFlowNotFound}
	}

	if err != nil {
		return nil, &persistence.FlowError{Op: "GetByID", FlowID: id, Err: err}
	}

	return flow, nil
}

func (fr *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	if err := fr.store.writeJSON(fr.path(flow.ID), flow); err != nil {
		return &persistence.FlowError{Op: "Save", FlowID: flow.ID, Err: err}
	}

	return nil
}

func (fr *FlowRepository) Delete(_ context.Context, id string) error {
	fr.store.mu.Lock()
	defer fr.store.mu.Unlock()

	err := os.Remove(fr.path(id))
	if os.IsNotExist(err) {
		return &persistence.FlowError{Op: "Delete", FlowID: id, Err: persistence.ErrFlowNotFound}
	}

	return err
}

func (fr *FlowRepository) path(id string) string {
	return fr.store.dir("flows", id+".json")
}
