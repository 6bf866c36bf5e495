// Package generator provides the HTTP client implementation of the
// generation collaborator contract.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/protocol"
)

// ErrGenerationDisabled is returned when no upstream is configured. The
// router translates any generation error into the fallback reply.
var ErrGenerationDisabled = errors.New("generation upstream not configured")

// HTTPGenerator posts the conversation context to an upstream generation
// service and returns its reply. Timeouts are the caller's concern via ctx.
type HTTPGenerator struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type generateRequest struct {
	History   []*models.Message          `json:"history"`
	Text      string                     `json:"text"`
	Knowledge []protocol.KnowledgeResult `json:"knowledge,omitempty"`
}

type generateResponse struct {
	Reply string `json:"reply"`
}

func NewHTTPGenerator(url string, logger *slog.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		client: &http.Client{},
		logger: logger.With("module", "generator"),
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, history []*models.Message, text string, knowledge []protocol.KnowledgeResult) (string, error) {
	if g.url == "" {
		return "", ErrGenerationDisabled
	}

	payload, err := json.Marshal(generateRequest{
		History:   history,
		Text:      text,
		Knowledge: knowledge,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create generation request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.WarnContext(ctx, "Generation upstream returned non-200",
			"status", resp.StatusCode, "body_length", len(body))

		return "", fmt.Errorf("generation upstream returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse generation response: %w", err)
	}

	if out.Reply == "" {
		return "", errors.New("generation upstream returned an empty reply")
	}

	return out.Reply, nil
}
