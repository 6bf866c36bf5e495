// Package router is the entry point for inbound messages: it resolves the
// conversation, applies handoff rules, evaluates keyword rules, advances
// flows and falls back to generated replies.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/botgrid/botgrid/pkg/eventbus"
	"github.com/botgrid/botgrid/pkg/events"
	"github.com/botgrid/botgrid/pkg/flow"
	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/otelhelper"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/protocol"
	"github.com/botgrid/botgrid/pkg/services"
	"github.com/botgrid/botgrid/pkg/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Upstream generation failures. Both trigger the configured fallback reply
// and are logged, never surfaced to the caller.
var (
	ErrUpstreamTimeout = errors.New("generation upstream timeout")
	ErrUpstreamError   = errors.New("generation upstream error")
)

// ErrFlowStartDuringHandoff rejects starting a flow while a human agent owns
// the conversation.
var ErrFlowStartDuringHandoff = errors.New("cannot start flow while handoff is enabled")

// Outcome names which routing branch produced the result.
type Outcome string

const (
	OutcomeQueuedForAgent Outcome = "queued_for_agent"
	OutcomeRule           Outcome = "rule"
	OutcomeFlow           Outcome = "flow"
	OutcomeGenerated      Outcome = "generated"
	OutcomeFallback       Outcome = "fallback"
)

// Result is what one routing call produced. Inbound is always recorded;
// Outbound is nil when no automated reply fired (human mode, or an action
// with no reply text).
type Result struct {
	Conversation *models.Conversation `json:"conversation"`
	Inbound      *models.Message      `json:"inbound"`
	Outbound     *models.Message      `json:"outbound,omitempty"`
	Outcome      Outcome              `json:"outcome"`
	Action       *models.Action       `json:"action,omitempty"`
}

// Config tunes the router.
type Config struct {
	// GenerationTimeout bounds the only network call in the routing path.
	GenerationTimeout time.Duration

	// FallbackReply is recorded verbatim when generation fails or times out.
	FallbackReply string

	// HistoryLimit caps how many transcript messages are handed to the
	// generation collaborator. Zero means the full transcript.
	HistoryLimit int
}

const (
	defaultGenerationTimeout = 10 * time.Second
	defaultFallbackReply     = "Sorry, I could not process your message right now. Please try again in a moment."
	defaultHistoryLimit      = 50
)

// Router owns all conversation-mutating entry points. Every method runs its
// state-mutating section under the per-conversation lock.
type Router struct {
	conversations *services.Conversation
	matcher       *workflow.Matcher
	interpreter   *flow.Interpreter
	flows         persistence.FlowRepository
	generator     protocol.Generator
	knowledge     protocol.KnowledgeBase
	eventBus      eventbus.EventBus
	tracer        trace.Tracer
	logger        *slog.Logger
	locks         conversationLocks
	config        Config
}

func NewRouter(
	conversations *services.Conversation,
	matcher *workflow.Matcher,
	interpreter *flow.Interpreter,
	flows persistence.FlowRepository,
	generator protocol.Generator,
	knowledge protocol.KnowledgeBase,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	config Config,
) *Router {
	if config.GenerationTimeout <= 0 {
		config.GenerationTimeout = defaultGenerationTimeout
	}

	if config.FallbackReply == "" {
		config.FallbackReply = defaultFallbackReply
	}

	if config.HistoryLimit < 0 {
		config.HistoryLimit = defaultHistoryLimit
	}

	if tracer == nil {
		tracer = otel.Tracer("botgrid/router")
	}

	return &Router{
		conversations: conversations,
		matcher:       matcher,
		interpreter:   interpreter,
		flows:         flows,
		generator:     generator,
		knowledge:     knowledge,
		eventBus:      eventBus,
		tracer:        tracer,
		logger:        logger.With("module", "router"),
		config:        config,
	}
}

// Route processes one inbound message end to end. First applicable step
// wins: human handoff, keyword rule, active flow, generated reply.
func (r *Router) Route(ctx context.Context, platform, externalUserID, text string) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "router.route",
		attribute.String(otelhelper.PlatformKey, platform),
	)
	defer span.End()

	identity := models.ConversationIdentity{Platform: platform, ExternalUserID: externalUserID}

	conversation, created, err := r.conversations.Resolve(ctx, identity)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Int64(otelhelper.ConversationIDKey, conversation.ID))

	if created {
		r.publish(ctx, conversation.ID, events.ConversationCreated{
			BaseEvent:      r.baseEvent(events.ConversationCreatedEvent, conversation.ID),
			Platform:       platform,
			ExternalUserID: externalUserID,
		})
	}

	release := r.locks.acquire(conversation.ID)
	defer release()

	// Re-read under the lock: another in-flight call may have toggled
	// handoff or advanced a flow between resolve and acquire.
	conversation, err = r.conversations.Get(ctx, conversation.ID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	inbound, err := r.conversations.AppendMessage(ctx, conversation, models.MessageSenderUser, text)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	r.publish(ctx, conversation.ID, events.MessageReceived{
		BaseEvent: r.baseEvent(events.MessageReceivedEvent, conversation.ID),
		MessageID: inbound.ID,
		Content:   text,
	})

	result := &Result{Conversation: conversation, Inbound: inbound}

	// From here on the inbound message is durable: a caller cancellation
	// no longer rolls anything back, the transcript is append-only.

	if conversation.HandoffEnabled {
		result.Outcome = OutcomeQueuedForAgent
		span.SetAttributes(attribute.String(otelhelper.RouteOutcomeKey, string(result.Outcome)))

		return result, nil
	}

	match, err := r.matcher.Match(ctx, text)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	var outText string

	switch {
	case match != nil:
		span.SetAttributes(attribute.String(otelhelper.RuleIDKey, match.Rule.ID))

		outText, err = r.performRuleAction(ctx, conversation, match.Action, text)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		result.Outcome = OutcomeRule
		result.Action = match.Action

	case conversation.ActiveFlow != nil:
		span.SetAttributes(attribute.String(otelhelper.FlowIDKey, conversation.ActiveFlow.FlowID))

		outText, err = r.advanceFlow(ctx, conversation, text)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		result.Outcome = OutcomeFlow

	default:
		outText, result.Outcome = r.generate(ctx, conversation, text, nil)
	}

	if outText != "" {
		outbound, err := r.recordOutbound(ctx, conversation, outText)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		result.Outbound = outbound
	}

	span.SetAttributes(attribute.String(otelhelper.RouteOutcomeKey, string(result.Outcome)))

	return result, nil
}

// StartFlow is the explicit admin trigger: position the conversation at the
// flow's entry node. Last start wins.
func (r *Router) StartFlow(ctx context.Context, conversationID int64, flowID string) (*models.Conversation, error) {
	release := r.locks.acquire(conversationID)
	defer release()

	conversation, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if !conversation.IsOpen() {
		return nil, persistence.NewConversationError("StartFlow", conversationID, persistence.ErrConversationClosed)
	}

	if conversation.HandoffEnabled {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrFlowStartDuringHandoff)
	}

	graph, err := r.flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	r.interpreter.Start(conversation, graph)

	if err := r.conversations.Update(ctx, conversation); err != nil {
		return nil, err
	}

	r.publish(ctx, conversation.ID, events.FlowStarted{
		BaseEvent:   r.baseEvent(events.FlowStartedEvent, conversation.ID),
		FlowID:      graph.ID,
		FlowVersion: graph.Version,
	})

	return conversation, nil
}

// PushFlow starts a flow and immediately advances it so its entry message
// reaches the user without waiting for inbound contact. Campaigns use this;
// the plain admin trigger is StartFlow.
func (r *Router) PushFlow(ctx context.Context, conversationID int64, flowID string) (*models.Message, error) {
	release := r.locks.acquire(conversationID)
	defer release()

	conversation, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if !conversation.IsOpen() {
		return nil, persistence.NewConversationError("PushFlow", conversationID, persistence.ErrConversationClosed)
	}

	if conversation.HandoffEnabled {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrFlowStartDuringHandoff)
	}

	graph, err := r.flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	r.interpreter.Start(conversation, graph)

	r.publish(ctx, conversation.ID, events.FlowStarted{
		BaseEvent:   r.baseEvent(events.FlowStartedEvent, conversation.ID),
		FlowID:      graph.ID,
		FlowVersion: graph.Version,
	})

	output, err := r.advanceFlow(ctx, conversation, "")
	if err != nil {
		return nil, err
	}

	if output == "" {
		return nil, nil
	}

	return r.recordOutbound(ctx, conversation, output)
}

// SetHandoff toggles human mode under the conversation lock.
func (r *Router) SetHandoff(ctx context.Context, conversationID int64, enabled bool) (*models.Conversation, error) {
	release := r.locks.acquire(conversationID)
	defer release()

	conversation, changed, err := r.conversations.SetHandoff(ctx, conversationID, enabled)
	if err != nil {
		return nil, err
	}

	if changed {
		r.publish(ctx, conversation.ID, events.HandoffChanged{
			BaseEvent: r.baseEvent(events.HandoffChangedEvent, conversation.ID),
			Enabled:   enabled,
		})
	}

	return conversation, nil
}

// AgentReply records a human agent's out-of-band reply.
func (r *Router) AgentReply(ctx context.Context, conversationID int64, content string) (*models.Message, error) {
	release := r.locks.acquire(conversationID)
	defer release()

	message, err := r.conversations.AgentReply(ctx, conversationID, content)
	if err != nil {
		return nil, err
	}

	r.publish(ctx, conversationID, events.MessageSent{
		BaseEvent: r.baseEvent(events.MessageSentEvent, conversationID),
		MessageID: message.ID,
		Sender:    message.Sender,
		Content:   message.Content,
		Platform:  message.Platform,
	})

	return message, nil
}

// performRuleAction executes a matched rule's action and returns the reply
// text it produced, if any.
func (r *Router) performRuleAction(ctx context.Context, conversation *models.Conversation, action *models.Action, text string) (string, error) {
	switch action.Kind {
	case models.ActionKindReply:
		return action.Text, nil

	case models.ActionKindEscalate:
		conversation.HandoffEnabled = true
		conversation.ActiveFlow = nil

		if err := r.conversations.Update(ctx, conversation); err != nil {
			return "", err
		}

		r.publish(ctx, conversation.ID, events.HandoffChanged{
			BaseEvent: r.baseEvent(events.HandoffChangedEvent, conversation.ID),
			Enabled:   true,
		})

		return "", nil

	case models.ActionKindTag:
		if conversation.HasTag(action.Label) {
			return "", nil
		}

		conversation.Tags = append(conversation.Tags, action.Label)

		return "", r.conversations.Update(ctx, conversation)

	case models.ActionKindStartFlow:
		graph, err := r.flows.GetByID(ctx, action.FlowID)
		if persistence.IsFlowNotFound(err) {
			// The rule references a deleted flow. Log and answer nothing
			// rather than failing the whole message.
			r.logger.WarnContext(ctx, "Rule references missing flow",
				"conversation_id", conversation.ID, "flow_id", action.FlowID)

			return "", nil
		}

		if err != nil {
			return "", err
		}

		r.interpreter.Start(conversation, graph)

		if err := r.conversations.Update(ctx, conversation); err != nil {
			return "", err
		}

		r.publish(ctx, conversation.ID, events.FlowStarted{
			BaseEvent:   r.baseEvent(events.FlowStartedEvent, conversation.ID),
			FlowID:      graph.ID,
			FlowVersion: graph.Version,
		})

		return "", nil

	case models.ActionKindSearchKB:
		query := action.Query
		if query == "" {
			query = text
		}

		reply, _ := r.generate(ctx, conversation, text, r.search(ctx, query))

		return reply, nil

	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownActionKind, action.Kind)
	}
}

// advanceFlow steps the active flow instance and persists the conversation
// mutations the interpreter made.
func (r *Router) advanceFlow(ctx context.Context, conversation *models.Conversation, text string) (string, error) {
	activeFlowID := conversation.ActiveFlow.FlowID

	step, err := r.interpreter.Advance(ctx, conversation, text)
	if err != nil {
		return "", err
	}

	if err := r.conversations.Update(ctx, conversation); err != nil {
		return "", err
	}

	if step.Escalated {
		r.publish(ctx, conversation.ID, events.HandoffChanged{
			BaseEvent: r.baseEvent(events.HandoffChangedEvent, conversation.ID),
			Enabled:   true,
		})
	}

	if step.Completed {
		r.publish(ctx, conversation.ID, events.FlowCompleted{
			BaseEvent: r.baseEvent(events.FlowCompletedEvent, conversation.ID),
			FlowID:    activeFlowID,
		})
	}

	if step.StartedFlowID != "" {
		r.publish(ctx, conversation.ID, events.FlowStarted{
			BaseEvent:   r.baseEvent(events.FlowStartedEvent, conversation.ID),
			FlowID:      step.StartedFlowID,
			FlowVersion: conversation.ActiveFlow.FlowVersion,
		})
	}

	output := step.Output

	if output == "" && step.Augment != nil {
		query := step.Augment.Query
		if query == "" {
			query = text
		}

		output, _ = r.generate(ctx, conversation, text, r.search(ctx, query))
	}

	return output, nil
}

// generate delegates to the external generation collaborator under the
// configured timeout. Failures degrade to the fallback reply; an answer is
// always produced.
func (r *Router) generate(ctx context.Context, conversation *models.Conversation, text string, knowledge []protocol.KnowledgeResult) (string, Outcome) {
	history, err := r.conversations.Transcript(ctx, conversation.ID, r.config.HistoryLimit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to load transcript for generation",
			"conversation_id", conversation.ID, "error", err)

		return r.config.FallbackReply, OutcomeFallback
	}

	genCtx, cancel := context.WithTimeout(ctx, r.config.GenerationTimeout)
	defer cancel()

	reply, err := r.generator.Generate(genCtx, history, text, knowledge)
	if err != nil {
		upstream := ErrUpstreamError
		if errors.Is(err, context.DeadlineExceeded) {
			upstream = ErrUpstreamTimeout
		}

		r.logger.WarnContext(ctx, "Generation failed, using fallback reply",
			"conversation_id", conversation.ID, "error", fmt.Errorf("%w: %w", upstream, err))

		return r.config.FallbackReply, OutcomeFallback
	}

	return reply, OutcomeGenerated
}

// search queries the knowledge base, degrading to no augmentation on error.
func (r *Router) search(ctx context.Context, query string) []protocol.KnowledgeResult {
	if r.knowledge == nil {
		return nil
	}

	results, err := r.knowledge.Search(ctx, query)
	if err != nil {
		r.logger.WarnContext(ctx, "Knowledge base search failed", "query", query, "error", err)

		return nil
	}

	return results
}

// recordOutbound appends the bot reply to the transcript and announces it.
func (r *Router) recordOutbound(ctx context.Context, conversation *models.Conversation, content string) (*models.Message, error) {
	outbound, err := r.conversations.AppendMessage(ctx, conversation, models.MessageSenderBot, content)
	if err != nil {
		return nil, err
	}

	r.publish(ctx, conversation.ID, events.MessageSent{
		BaseEvent: r.baseEvent(events.MessageSentEvent, conversation.ID),
		MessageID: outbound.ID,
		Sender:    outbound.Sender,
		Content:   outbound.Content,
		Platform:  outbound.Platform,
	})

	return outbound, nil
}

func (r *Router) baseEvent(eventType events.EventType, conversationID int64) events.BaseEvent {
	id := ""
	if r.eventBus != nil {
		id = r.eventBus.GenerateID()
	}

	return events.BaseEvent{
		ID:             id,
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		ConversationID: conversationID,
	}
}

func (r *Router) publish(ctx context.Context, conversationID int64, event eventbus.Event) {
	if r.eventBus == nil {
		return
	}

	key := fmt.Sprintf("conversation-%d", conversationID)

	if err := r.eventBus.Publish(ctx, key, event); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", string(event.GetType()), "conversation_id", conversationID, "error", err)
	}
}
