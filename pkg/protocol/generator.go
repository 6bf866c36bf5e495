// Package protocol defines the boundary contracts between the orchestration
// core and its external collaborators.
package protocol

import (
	"context"

	"github.com/botgrid/botgrid/pkg/models"
)

// Generator produces a reply for a message the automation layers did not
// handle. Implementations call an AI provider; the core treats them as a
// black box behind a timeout with a configured fallback reply.
type Generator interface {
	// Generate returns the reply text for the inbound text given the
	// conversation history, oldest first. Optional knowledge-base results
	// may be passed as additional grounding context.
	Generate(ctx context.Context, history []*models.Message, text string, knowledge []KnowledgeResult) (string, error)
}

// KnowledgeResult is a single retrieval hit from the knowledge base.
type KnowledgeResult struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeBase is the retrieval collaborator, consulted only when a rule or
// flow action explicitly requests retrieval augmentation.
type KnowledgeBase interface {
	Search(ctx context.Context, query string) ([]KnowledgeResult, error)
}
