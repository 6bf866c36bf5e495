// Package web provides HTTP handlers and REST API endpoints for the
// conversation orchestration core.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/botgrid/botgrid/pkg/campaign"
	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/registry"
	"github.com/botgrid/botgrid/pkg/router"
	"github.com/botgrid/botgrid/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	conversationService *services.Conversation
	workflowService     *services.Workflow
	flowService         *services.Flow
	campaignService     *services.Campaign
	router              *router.Router
	scheduler           *campaign.Scheduler
	validator           *validator.Validate
	registry            *registry.Registry
}

func NewAPIHandlers(
	conversationService *services.Conversation,
	workflowService *services.Workflow,
	flowService *services.Flow,
	campaignService *services.Campaign,
	rtr *router.Router,
	scheduler *campaign.Scheduler,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		conversationService: conversationService,
		workflowService:     workflowService,
		flowService:         flowService,
		campaignService:     campaignService,
		router:              rtr,
		scheduler:           scheduler,
		validator:           validator,
		registry:            registry,
	}
}

// IngestMessage is the uniform inbound entry point for all channel adapters.
func (h *APIHandlers) IngestMessage(c fiber.Ctx) error {
	var req InboundMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.router.Route(c.Context(), req.Platform, req.ExternalUserID, req.Text)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetConversations(c fiber.Ctx) error {
	opts := persistence.ListConversationsOptions{
		Platform: c.Query("platform"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset parameter")
		}

		opts.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ConversationStatus(statusStr)
		opts.Status = &status
	}

	result, err := h.conversationService.List(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetConversation(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	conversation, err := h.conversationService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(conversation)
}

func (h *APIHandlers) GetConversationMessages(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}
	}

	messages, err := h.conversationService.Transcript(c.Context(), id, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *APIHandlers) CloseConversation(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	conversation, err := h.conversationService.Close(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(conversation)
}

func (h *APIHandlers) SetHandoff(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	var req SetHandoffRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	conversation, err := h.router.SetHandoff(c.Context(), id, req.Enabled)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(SetHandoffResponse{HandoffEnabled: conversation.HandoffEnabled})
}

func (h *APIHandlers) AgentReply(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	var req AgentReplyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	message, err := h.router.AgentReply(c.Context(), id, req.Message)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(AgentReplyResponse{Status: "sent", MessageID: message.ID})
}

// StartConversationFlow is the explicit admin trigger for a flow.
func (h *APIHandlers) StartConversationFlow(c fiber.Ctx) error {
	id, err := conversationID(c)
	if err != nil {
		return badRequest(c, "Invalid conversation ID")
	}

	flowID := c.Params("flowId")
	if flowID == "" {
		return badRequest(c, "Flow ID is required")
	}

	conversation, err := h.router.StartFlow(c.Context(), id, flowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(conversation)
}

// Workflow rule endpoints.

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	rules, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": rules})
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule := &models.WorkflowRule{
		Name:     req.Name,
		Keywords: req.Keywords,
		Action:   req.Action,
	}

	created, err := h.workflowService.Create(c.Context(), rule)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	var req UpdateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule, err := h.workflowService.Update(c.Context(), c.Params("id"), services.UpdateRuleRequest{
		Name:     req.Name,
		Keywords: req.Keywords,
		Action:   req.Action,
		Position: req.Position,
		Enabled:  req.Enabled,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Flow endpoints.

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{
		Name:  req.Name,
		Nodes: toModelNodes(req.Nodes),
	}

	created, err := h.flowService.Create(c.Context(), flow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	flow, err := h.flowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.Update(c.Context(), c.Params("id"), req.Name, toModelNodes(req.Nodes))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	if err := h.flowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Campaign endpoints.

func (h *APIHandlers) GetCampaigns(c fiber.Ctx) error {
	campaigns, err := h.campaignService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"campaigns": campaigns})
}

func (h *APIHandlers) CreateCampaign(c fiber.Ctx) error {
	var req CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.campaignService.Create(c.Context(), &models.Campaign{
		Name:     req.Name,
		CronExpr: req.CronExpr,
		FlowID:   req.FlowID,
		Platform: req.Platform,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	h.reloadSchedule(c)

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetCampaign(c fiber.Ctx) error {
	campaign, err := h.campaignService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(campaign)
}

func (h *APIHandlers) UpdateCampaign(c fiber.Ctx) error {
	var req UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	campaign, err := h.campaignService.Update(c.Context(), c.Params("id"), services.UpdateCampaignRequest{
		Name:     req.Name,
		CronExpr: req.CronExpr,
		FlowID:   req.FlowID,
		Platform: req.Platform,
		Enabled:  req.Enabled,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	h.reloadSchedule(c)

	return c.JSON(campaign)
}

func (h *APIHandlers) DeleteCampaign(c fiber.Ctx) error {
	if err := h.campaignService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	h.reloadSchedule(c)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.conversationService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Botgrid API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Botgrid API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) reloadSchedule(c fiber.Ctx) {
	if h.scheduler == nil {
		return
	}

	// Campaign CRUD succeeded; a reload failure only delays the schedule
	// until the next restart and must not fail the request.
	_ = h.scheduler.Reload(c.Context())
}

func conversationID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
