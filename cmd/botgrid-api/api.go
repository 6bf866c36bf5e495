// Package main provides the Botgrid API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/botgrid/botgrid/pkg/campaign"
	"github.com/botgrid/botgrid/pkg/eventbus"
	"github.com/botgrid/botgrid/pkg/flow"
	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/protocol"
	"github.com/botgrid/botgrid/pkg/registry"
	"github.com/botgrid/botgrid/pkg/router"
	"github.com/botgrid/botgrid/pkg/services"
	"github.com/botgrid/botgrid/pkg/web"
	"github.com/botgrid/botgrid/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	registry     *registry.Registry
	eventBus     eventbus.EventBus
	generator    protocol.Generator
	knowledge    protocol.KnowledgeBase
	tracer       trace.Tracer
	routerConfig router.Config
	validate     *validator.Validate

	router    *router.Router
	scheduler *campaign.Scheduler
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	generator protocol.Generator,
	knowledge protocol.KnowledgeBase,
	tracer trace.Tracer,
	routerConfig router.Config,
) *API {
	a := &API{
		logger:       logger,
		persistence:  persistence,
		registry:     registry,
		eventBus:     eventBus,
		generator:    generator,
		knowledge:    knowledge,
		tracer:       tracer,
		routerConfig: routerConfig,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}

	conversationService := services.NewConversation(persistence)
	matcher := workflow.NewMatcher(persistence.Rules(), logger)
	interpreter := flow.NewInterpreter(persistence.Flows(), logger)

	a.router = router.NewRouter(
		conversationService,
		matcher,
		interpreter,
		persistence.Flows(),
		generator,
		knowledge,
		eventBus,
		tracer,
		logger,
		routerConfig,
	)

	a.scheduler = campaign.NewScheduler(persistence, a.router, eventBus, logger)

	return a
}

// Router exposes the routing pipeline for sibling workers (queue ingestion).
func (a *API) Router() *router.Router {
	return a.router
}

// Scheduler exposes the campaign scheduler for lifecycle management.
func (a *API) Scheduler() *campaign.Scheduler {
	return a.scheduler
}

func (a *API) App() *fiber.App {
	conversationService := services.NewConversation(a.persistence)
	workflowService := services.NewWorkflow(a.persistence, a.registry)
	flowService := services.NewFlow(a.persistence, a.registry)
	campaignService := services.NewCampaign(a.persistence)

	handlers := web.NewAPIHandlers(
		conversationService,
		workflowService,
		flowService,
		campaignService,
		a.router,
		a.scheduler,
		a.validate,
		a.registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Botgrid API")
	})

	app.Post("/messages", handlers.IngestMessage)

	conv := app.Group("/conversations")
	conv.Get("/", handlers.GetConversations)
	conv.Get("/:id", handlers.GetConversation)
	conv.Get("/:id/messages", handlers.GetConversationMessages)
	conv.Post("/:id/close", handlers.CloseConversation)
	conv.Post("/:id/handoff", handlers.SetHandoff)
	conv.Post("/:id/reply", handlers.AgentReply)
	conv.Post("/:id/flows/:flowId/start", handlers.StartConversationFlow)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetRules)
	w.Post("/", handlers.CreateRule)
	w.Get("/:id", handlers.GetRule)
	w.Patch("/:id", handlers.UpdateRule)
	w.Delete("/:id", handlers.DeleteRule)

	f := app.Group("/flows")
	f.Get("/", handlers.GetFlows)
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Patch("/:id", handlers.UpdateFlow)
	f.Delete("/:id", handlers.DeleteFlow)

	cmp := app.Group("/campaigns")
	cmp.Get("/", handlers.GetCampaigns)
	cmp.Post("/", handlers.CreateCampaign)
	cmp.Get("/:id", handlers.GetCampaign)
	cmp.Patch("/:id", handlers.UpdateCampaign)
	cmp.Delete("/:id", handlers.DeleteCampaign)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
