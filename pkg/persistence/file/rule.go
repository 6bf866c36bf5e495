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

// WorkflowRuleRepository stores one JSON file per rule.
type WorkflowRuleRepository struct {
	store *Persistence
}

// List returns all rules sorted by evaluation position.
func (rr *WorkflowRuleRepository) List(_ context.Context) ([]*models.WorkflowRule, error) {
	rr.store.mu.Lock()
	defer rr.store.mu.Unlock()

	root := os.DirFS(rr.store.dir("rules"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	rules := make([]*models.WorkflowRule, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		rule, err := rr.getLocked(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].Position < rules[j].Position })

	return rules, nil
}

func (rr *WorkflowRuleRepository) GetByID(_ context.Context, id string) (*models.WorkflowRule, error) {
	rr.store.mu.Lock()
	defer rr.store.mu.Unlock()

	return rr.getLocked(id)
}

func (rr *WorkflowRuleRepository) getLocked(id string) (*models.WorkflowRule, error) {
	rule := &models.WorkflowRule{}

	err := rr.store.readJSON(rr.path(id), rule)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("rule %s: %w", id, persistence.ErrRuleNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load rule %s: %w", id, err)
	}

	return rule, nil
}

func (rr *WorkflowRuleRepository) Save(_ context.Context, rule *models.WorkflowRule) error {
	rr.store.mu.Lock()
	defer rr.store.mu.Unlock()

	if err := rr.store.writeJSON(rr.path(rule.ID), rule); err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	return nil
}

func (rr *WorkflowRuleRepository) Delete(_ context.Context, id string) error {
	rr.store.mu.Lock()
	defer rr.store.mu.Unlock()

	err := os.Remove(rr.path(id))
	if os.IsNotExist(err) {
		return fmt.Errorf("rule %s: %w", id, persistence.ErrRuleNotFound)
	}

	return err
}

func (rr *WorkflowRuleRepository) path(id string) string {
	return rr.store.dir("rules", id+".json")
}
