package main

import (
	"context"
	"os"
	"time"

	"github.com/botgrid/botgrid/pkg/cmd"
	"github.com/botgrid/botgrid/pkg/generator"
	"github.com/botgrid/botgrid/pkg/ingest"
	"github.com/botgrid/botgrid/pkg/log"
	"github.com/botgrid/botgrid/pkg/otelhelper"
	"github.com/botgrid/botgrid/pkg/router"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9092

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "botgrid-api",
		Usage:                 "Route chatbot conversations and manage workflow rules, flows and campaigns",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "generation-url",
				Usage:   "Upstream generation service URL (empty disables generation, every miss falls back)",
				Sources: cli.EnvVars("GENERATION_URL"),
			},
			&cli.DurationFlag{
				Name:    "generation-timeout",
				Usage:   "Upper bound on one generation call",
				Value:   10 * time.Second,
				Sources: cli.EnvVars("GENERATION_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "fallback-reply",
				Usage:   "Reply recorded when generation fails or times out",
				Sources: cli.EnvVars("FALLBACK_REPLY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for inbound queue ingestion (empty disables the consumer)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "ingest-queue",
				Usage:   "Redis list channel adapters push inbound messages to",
				Value:   "botgrid:inbound",
				Sources: cli.EnvVars("INGEST_QUEUE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Botgrid API")

			persistence := cmd.NewPersistence(command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var tracer trace.Tracer

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "botgrid-api")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without tracing", "error", err)
				}
			}

			registry := cmd.NewRegistry(logger)

			api := NewAPI(
				logger,
				persistence,
				registry,
				eventBus,
				generator.NewHTTPGenerator(command.String("generation-url"), logger),
				nil,
				tracer,
				router.Config{
					GenerationTimeout: command.Duration("generation-timeout"),
					FallbackReply:     command.String("fallback-reply"),
				},
			)

			defer api.Scheduler().Stop()

			if redisURL := command.String("redis-url"); redisURL != "" {
				consumer, err := ingest.NewQueueConsumer(redisURL, command.String("ingest-queue"), api.Router(), logger)
				if err != nil {
					return err
				}

				if err := consumer.Start(ctx); err != nil {
					return err
				}

				defer func() {
					if err := consumer.Stop(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to stop queue consumer", "error", err)
					}
				}()
			}

			if err := api.Start(ctx, command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
