package file

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
)

// MessageRepository stores each conversation transcript as a single JSON
// file, appended under the store mutex.
type MessageRepository struct {
	store *Persistence
}

// Append assigns the message id and timestamp and persists it at the end of
// the conversation transcript.
func (mr *MessageRepository) Append(_ context.Context, message *models.Message) (*models.Message, error) {
	mr.store.mu.Lock()
	defer mr.store.mu.Unlock()

	transcript, err := mr.loadLocked(message.ConversationID)
	if err != nil {
		return nil, err
	}

	id, err := mr.store.nextID("messages")
	if err != nil {
		return nil, persistence.NewConversationError("AppendMessage", message.ConversationID, err)
	}

	message.ID = id
	message.CreatedAt = time.Now().UTC()

	transcript = append(transcript, message)

	if err := mr.store.writeJSON(mr.path(message.ConversationID), transcript); err != nil {
		return nil, persistence.NewConversationError("AppendMessage", message.ConversationID, err)
	}

	return message, nil
}

// ListByConversation returns the transcript in creation order, keeping only
// the most recent limit messages when limit is positive.
func (mr *MessageRepository) ListByConversation(_ context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	mr.store.mu.Lock()
	defer mr.store.mu.Unlock()

	transcript, err := mr.loadLocked(conversationID)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(transcript) > limit {
		transcript = transcript[len(transcript)-limit:]
	}

	return transcript, nil
}

func (mr *MessageRepository) loadLocked(conversationID int64) ([]*models.Message, error) {
	transcript := make([]*models.Message, 0)

	err := mr.store.readJSON(mr.path(conversationID), &transcript)
	if err != nil && !os.IsNotExist(err) {
		return nil, persistence.NewConversationError("ListMessages", conversationID, err)
	}

	return transcript, nil
}

func (mr *MessageRepository) path(conversationID int64) string {
	return mr.store.dir("messages", strconv.FormatInt(conversationID, 10)+".json")
}
