package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/floworc/floworc/pkg/conditions"
	"github.com/floworc/floworc/pkg/eventbus"
	"github.com/floworc/floworc/pkg/events"
	"github.com/floworc/floworc/pkg/expression"
	"github.com/floworc/floworc/pkg/otelhelper"
	"github.com/floworc/floworc/pkg/persistence"
	"github.com/floworc/floworc/pkg/trigger"
)

// Service consumes execution state changes, evaluates flow triggers and
// publishes the executions that fired.
type Service struct {
	id            string
	eventBus      eventbus.EventBus
	persistence   persistence.Persistence
	evaluator     *trigger.Evaluator
	logger        *slog.Logger
	tracer        trace.Tracer
	sweepSchedule string
	cron          *cron.Cron
	restartCount  int

	mu      sync.Mutex
	tenants map[string]struct{}
}

// NewService wires the evaluator onto its collaborators.
func NewService(
	id string,
	persist persistence.Persistence,
	windows persistence.WindowRepository,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	sweepSchedule string,
	logger *slog.Logger,
) *Service {
	renderer := expression.NewExprRenderer()
	evaluator := trigger.NewEvaluator(
		trigger.NewCatalog(persist.FlowRepository()),
		windows,
		conditions.NewEvaluator(renderer),
		renderer,
		logger,
	)

	return &Service{
		id:            id,
		eventBus:      eventBus,
		persistence:   persist,
		evaluator:     evaluator,
		logger:        logger.With("module", "trigger_service"),
		tracer:        tracer,
		sweepSchedule: sweepSchedule,
		tenants:       make(map[string]struct{}),
	}
}

// Start begins the trigger service.
func (s *Service) Start(ctx context.Context) {
	sCtx, cancel := context.WithCancel(ctx)

	s.logger.Info("Starting trigger service")

	s.handleSignals(sCtx, cancel)
	s.startSweep(sCtx)
	s.run(sCtx)
}

// handleSignals sets up signal handling for graceful shutdown and restart.
func (s *Service) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		s.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			s.logger.Info("Reloading...")
			s.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			s.logger.Info("Shutting down gracefully...")
			s.stop(cancel)
			os.Exit(0)
		default:
			s.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

// restart handles service restart with backoff.
func (s *Service) restart(ctx context.Context, cancel context.CancelFunc) {
	s.restartCount++
	newCtx := context.WithoutCancel(ctx)

	s.stop(cancel)

	if s.restartCount > 5 {
		s.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(s.restartCount) * time.Second
	s.logger.Info("Restarting trigger service...", "backoff", backoff)
	time.Sleep(backoff)

	s.Start(newCtx)
}

func (s *Service) stop(cancel context.CancelFunc) {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}

	cancel()
}

// startSweep schedules the periodic expired-window purge. The sweep bounds
// storage growth for windows no event ever revisits.
func (s *Service) startSweep(ctx context.Context) {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.sweepSchedule, func() {
		for _, tenantID := range s.knownTenants() {
			if err := s.evaluator.PurgeExpired(ctx, tenantID); err != nil {
				s.logger.ErrorContext(ctx, "expired window sweep failed", "tenant_id", tenantID, "error", err)
			}
		}
	})
	if err != nil {
		s.logger.Error("Failed to schedule expired window sweep", "schedule", s.sweepSchedule, "error", err)

		return
	}

	s.cron.Start()
}

// run is the main loop consuming execution state changes.
func (s *Service) run(ctx context.Context) {
	err := s.eventBus.Handle(events.ExecutionUpdatedEvent, func(ctx context.Context, event any) error {
		updated, ok := event.(*events.ExecutionUpdated)
		if !ok {
			s.logger.WarnContext(ctx, "unexpected event payload", "event", event)

			return nil
		}

		return s.handleExecutionUpdated(ctx, updated)
	})
	if err != nil {
		s.logger.Error("Failed to register execution event handler", "error", err)

		return
	}

	err = s.eventBus.Subscribe(ctx)
	if err != nil {
		s.logger.Error("Failed to subscribe to events", "error", err)

		return
	}

	s.logger.Info("Subscribed to execution events - waiting for events...")

	<-ctx.Done()
	s.logger.Info("Trigger service context cancelled, stopping...")
}

// handleExecutionUpdated evaluates both passes for one state change and
// publishes every execution that fired.
func (s *Service) handleExecutionUpdated(ctx context.Context, event *events.ExecutionUpdated) error {
	if err := event.Validate(); err != nil {
		s.logger.WarnContext(ctx, "dropping invalid execution event", "event_id", event.ID, "error", err)

		return nil
	}

	execution := event.Execution

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "trigger.evaluate",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.FlowIDKey, execution.FlowID),
		attribute.String(otelhelper.NamespaceKey, execution.Namespace),
		attribute.String(otelhelper.TenantIDKey, execution.TenantID),
	)
	defer span.End()

	logger := s.logger.With(
		"execution_id", execution.ID,
		"flow", execution.Namespace+"/"+execution.FlowID,
		"state", execution.State.Current,
	)

	s.trackTenant(execution.TenantID)

	sourceFlow, err := s.persistence.FlowRepository().FlowByID(ctx, execution.TenantID, execution.Namespace, execution.FlowID)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			logger.WarnContext(ctx, "source flow not found, nothing to evaluate")

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	triggered, err := s.evaluator.FromConditions(ctx, execution, sourceFlow)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	stateful, err := s.evaluator.FromPreconditions(ctx, execution, sourceFlow)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	triggered = append(triggered, stateful...)

	logger.InfoContext(ctx, "Trigger evaluation finished", "fired", len(triggered))

	for _, fired := range triggered {
		outbound := events.ExecutionTriggered{
			BaseEvent:         events.NewBaseEvent(events.ExecutionTriggeredEvent, fired.TenantID),
			Execution:         fired,
			SourceExecutionID: execution.ID,
		}

		if err := s.eventBus.Publish(ctx, fired.ID, outbound); err != nil {
			otelhelper.SetError(span, err)

			return err
		}
	}

	return nil
}

func (s *Service) trackTenant(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants[tenantID] = struct{}{}
}

func (s *Service) knownTenants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenants := make([]string, 0, len(s.tenants))
	for tenantID := range s.tenants {
		tenants = append(tenants, tenantID)
	}

	return tenants
}
