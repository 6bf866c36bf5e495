// Package ingest consumes inbound message payloads from a Redis queue and
// feeds them to the router. Channel adapters enqueue one JSON document per
// user message; ingestion is uniform regardless of channel.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/botgrid/botgrid/pkg/router"
	redis "github.com/redis/go-redis/v9"
)

const (
	popTimeout     = 5 * time.Second
	reconnectDelay = 2 * time.Second
)

// InboundMessage is the queue payload shape shared with channel adapters.
type InboundMessage struct {
	Platform       string `json:"platform"`
	ExternalUserID string `json:"external_user_id"`
	Text           string `json:"text"`
}

// QueueConsumer pops inbound messages off a Redis list and routes them.
type QueueConsumer struct {
	url    string
	queue  string
	router *router.Router
	logger *slog.Logger

	client redis.UniversalClient
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewQueueConsumer(url, queue string, rtr *router.Router, logger *slog.Logger) (*QueueConsumer, error) {
	if queue == "" {
		return nil, errors.New("ingest queue name is required")
	}

	return &QueueConsumer{
		url:    url,
		queue:  queue,
		router: rtr,
		stopCh: make(chan struct{}),
		logger: logger.With("module", "ingest", "queue", queue),
	}, nil
}

// Start connects and begins the consume loop in a background goroutine.
func (q *QueueConsumer) Start(ctx context.Context) error {
	opts, err := redis.ParseURL(q.url)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	q.client = redis.NewClient(opts)

	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	q.logger.InfoContext(ctx, "Starting inbound queue consumer")

	q.wg.Add(1)

	go q.consumeLoop(ctx)

	return nil
}

// Stop ends the consume loop and waits for the in-flight message to finish.
func (q *QueueConsumer) Stop(ctx context.Context) error {
	close(q.stopCh)
	q.wg.Wait()

	if q.client != nil {
		if err := q.client.Close(); err != nil {
			return err
		}
	}

	q.logger.InfoContext(ctx, "Inbound queue consumer stopped")

	return nil
}

func (q *QueueConsumer) consumeLoop(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		result, err := q.client.BLPop(ctx, popTimeout, q.queue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			q.logger.ErrorContext(ctx, "Queue pop failed, backing off", "error", err)

			select {
			case <-q.stopCh:
				return
			case <-time.After(reconnectDelay):
			}

			continue
		}

		// BLPop returns [queue, payload].
		if len(result) < 2 {
			continue
		}

		q.handle(ctx, []byte(result[1]))
	}
}

func (q *QueueConsumer) handle(ctx context.Context, payload []byte) {
	var inbound InboundMessage

	if err := json.Unmarshal(payload, &inbound); err != nil {
		q.logger.ErrorContext(ctx, "Discarding malformed inbound payload", "error", err)

		return
	}

	if inbound.Platform == "" || inbound.ExternalUserID == "" {
		q.logger.ErrorContext(ctx, "Discarding inbound payload without identity")

		return
	}

	result, err := q.router.Route(ctx, inbound.Platform, inbound.ExternalUserID, inbound.Text)
	if err != nil {
		q.logger.ErrorContext(ctx, "Routing failed for queued message",
			"platform", inbound.Platform, "external_user_id", inbound.ExternalUserID, "error", err)

		return
	}

	q.logger.DebugContext(ctx, "Routed queued message",
		"conversation_id", result.Conversation.ID, "outcome", string(result.Outcome))
}
