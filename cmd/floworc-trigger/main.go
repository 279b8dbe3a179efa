package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/floworc/floworc/pkg/cmd"
	"github.com/floworc/floworc/pkg/log"
	"github.com/floworc/floworc/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "floworc-trigger",
		Usage:                 "Start the floworc trigger evaluation service",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "trigger-service-id",
				Aliases: []string{"id"},
				Usage:   "Custom service ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("TRIGGER_SERVICE_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres://, memory://, or a directory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "window-store-url",
				Usage:   "Optional redis:// URL to keep window state on Redis",
				Value:   "",
				Sources: cli.EnvVars("WINDOW_STORE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, memory)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Value:   "",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule of the expired window sweep",
				Value:   "@every 1m",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
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

			serviceID := command.String("trigger-service-id")
			if serviceID == "" {
				serviceID = fmt.Sprintf("trigger-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("floworc-trigger").With("service_id", serviceID)
			logger.Info("Initializing floworc trigger service")

			tracer, err := otelhelper.NewTracer(ctx, "floworc-trigger")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to create persistence: %w", err)
			}
			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			windows, err := cmd.NewWindowRepository(ctx, logger, command.String("window-store-url"), persist)
			if err != nil {
				return fmt.Errorf("failed to create window store: %w", err)
			}

			brokers := strings.Split(command.String("kafka-brokers"), ",")

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), brokers, "floworc-trigger", logger)
			if err != nil {
				return fmt.Errorf("failed to create event bus: %w", err)
			}
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			service := NewService(
				serviceID,
				persist,
				windows,
				eventBus,
				tracer,
				command.String("sweep-schedule"),
				logger,
			)

			service.Start(ctx)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
