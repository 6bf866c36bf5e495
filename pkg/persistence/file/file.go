// Package file provides file-based persistence for conversations, rules,
// flows and campaigns. Suitable for development and single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/botgrid/botgrid/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// A single mutex serializes writes; reads of individual records go through
// the same mutex so resolve-or-create stays atomic.
type Persistence struct {
	root string
	mu   sync.Mutex

	conversations *ConversationRepository
	messages      *MessageRepository
	rules         *WorkflowRuleRepository
	flows         *FlowRepository
	campaigns     *CampaignRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.conversations = &ConversationRepository{store: p}
	p.messages = &MessageRepository{store: p}
	p.rules = &WorkflowRuleRepository{store: p}
	p.flows = &FlowRepository{store: p}
	p.campaigns = &CampaignRepository{store: p}

	return p
}

func (p *Persistence) Conversations() persistence.ConversationRepository {
	return p.conversations
}

func (p *Persistence) Messages() persistence.MessageRepository {
	return p.messages
}

func (p *Persistence) Rules() persistence.WorkflowRuleRepository {
	return p.rules
}

func (p *Persistence) Flows() persistence.FlowRepository {
	return p.flows
}

func (p *Persistence) Campaigns() persistence.CampaignRepository {
	return p.campaigns
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to release for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) dir(parts ...string) string {
	return filepath.Join(append([]string{p.root}, parts...)...)
}

// readJSON loads path into out. Missing files return os.ErrNotExist.
func (p *Persistence) readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}

// writeJSON persists in atomically via a temp file rename.
func (p *Persistence) writeJSON(path string, in any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// nextID increments and returns the named counter. Callers must hold p.mu.
func (p *Persistence) nextID(name string) (int64, error) {
	counters := make(map[string]int64)

	path := p.dir("counters.json")
	if err := p.readJSON(path, &counters); err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	counters[name]++

	if err := p.writeJSON(path, counters); err != nil {
		return 0, err
	}

	return counters[name], nil
}
