package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
)

// ConversationRepository stores one JSON file per conversation plus an
// identity index used for atomic get-or-create.
type ConversationRepository struct {
	store *Persistence
}

func identityKey(identity models.ConversationIdentity) string {
	return identity.Platform + "\x00" + identity.ExternalUserID
}

// Resolve returns the conversation for the identity, creating it when absent.
// The whole lookup-or-insert runs under the store mutex so concurrent first
// contact from the same identity yields exactly one conversation.
func (cr *ConversationRepository) Resolve(_ context.Context, identity models.ConversationIdentity) (*models.Conversation, bool, error) {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	index, err := cr.loadIndex()
	if err != nil {
		return nil, false, persistence.NewConversationError("Resolve", 0, err)
	}

	if id, ok := index[identityKey(identity)]; ok {
		conversation, err := cr.getByIDLocked(id)
		if err != nil {
			return nil, false, err
		}

		return conversation, false, nil
	}

	id, err := cr.store.nextID("conversations")
	if err != nil {
		return nil, false, persistence.NewConversationError("Resolve", 0, err)
	}

	now := time.Now().UTC()
	conversation := &models.Conversation{
		ID:             id,
		Platform:       identity.Platform,
		ExternalUserID: identity.ExternalUserID,
		Status:         models.ConversationStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := cr.store.writeJSON(cr.path(id), conversation); err != nil {
		return nil, false, persistence.NewConversationError("Resolve", id, err)
	}

	index[identityKey(identity)] = id
	if err := cr.saveIndex(index); err != nil {
		return nil, false, persistence.NewConversationError("Resolve", id, err)
	}

	return conversation, true, nil
}

func (cr *ConversationRepository) GetByID(_ context.Context, id int64) (*models.Conversation, error) {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	return cr.getByIDLocked(id)
}

func (cr *ConversationRepository) getByIDLocked(id int64) (*models.Conversation, error) {
	conversation := &models.Conversation{}

	err := cr.store.readJSON(cr.path(id), conversation)
	if os.IsNotExist(err) {
		return nil, persistence.NewConversationError("GetByID", id, persistence.ErrConversationNotFound)
	}

	if err != nil {
		return nil, persistence.NewConversationError("GetByID", id, err)
	}

	return conversation, nil
}

// Update overwrites an existing conversation record.
func (cr *ConversationRepository) Update(_ context.Context, conversation *models.Conversation) error {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	if _, err := cr.getByIDLocked(conversation.ID); err != nil {
		return err
	}

	conversation.UpdatedAt = time.Now().UTC()

	if err := cr.store.writeJSON(cr.path(conversation.ID), conversation); err != nil {
		return persistence.NewConversationError("Update", conversation.ID, err)
	}

	return nil
}

// List returns paginated conversations, newest first.
func (cr *ConversationRepository) List(_ context.Context, opts persistence.ListConversationsOptions) (*persistence.ConversationListResult, error) {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	all, err := cr.loadAllLocked()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Conversation, 0, len(all))

	for _, conversation := range all {
		if opts.Platform != "" && conversation.Platform != opts.Platform {
			continue
		}

		if opts.Status != nil && conversation.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, conversation)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	totalCount := int64(len(filtered))

	startIdx := opts.Offset
	if startIdx > len(filtered) {
		startIdx = len(filtered)
	}

	endIdx := startIdx + opts.Limit
	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	return &persistence.ConversationListResult{
		Conversations: filtered[startIdx:endIdx],
		TotalCount:    totalCount,
		HasNextPage:   endIdx < len(filtered),
	}, nil
}

func (cr *ConversationRepository) ListOpenBotByPlatform(_ context.Context, platform string) ([]*models.Conversation, error) {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	all, err := cr.loadAllLocked()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Conversation, 0)

	for _, conversation := range all {
		if conversation.Platform == platform && conversation.IsOpen() && !conversation.HandoffEnabled {
			matched = append(matched, conversation)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return matched, nil
}

func (cr *ConversationRepository) loadAllLocked() ([]*models.Conversation, error) {
	root := os.DirFS(cr.store.dir("conversations"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation files: %w", err)
	}

	conversations := make([]*models.Conversation, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		if file == "index.json" {
			continue
		}

		id, err := strconv.ParseInt(strings.TrimSuffix(file, ".json"), 10, 64)
		if err != nil {
			continue
		}

		conversation, err := cr.getByIDLocked(id)
		if err != nil {
			return nil, err
		}

		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

func (cr *ConversationRepository) path(id int64) string {
	return cr.store.dir("conversations", strconv.FormatInt(id, 10)+".json")
}

func (cr *ConversationRepository) loadIndex() (map[string]int64, error) {
	index := make(map[string]int64)

	err := cr.store.readJSON(cr.store.dir("conversations", "index.json"), &index)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return index, nil
}

func (cr *ConversationRepository) saveIndex(index map[string]int64) error {
	return cr.store.writeJSON(cr.store.dir("conversations", "index.json"), index)
}
