package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/floworc/floworc/pkg/conditions"
	"github.com/floworc/floworc/pkg/expression"
	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
)

// Evaluator decides which flows to start when an execution reaches a watched
// state. It never publishes: it only constructs the executions the caller is
// responsible for starting.
//
// Evaluation is split into two passes over disjoint trigger sets. The
// stateless pass handles triggers without window state; the preconditions
// pass handles triggers declaring preconditions or a multiple condition,
// accumulating partial matches in the window store. Failures are isolated to
// the one candidate being evaluated and never abort the rest of the batch.
type Evaluator struct {
	catalog    FlowCatalog
	windows    persistence.WindowRepository
	conditions *conditions.Evaluator
	renderer   expression.Renderer
	factory    *ExecutionFactory
	logger     *slog.Logger

	now func() time.Time
}

// NewEvaluator creates a trigger evaluator with its collaborators injected.
func NewEvaluator(
	catalog FlowCatalog,
	windows persistence.WindowRepository,
	conditionEvaluator *conditions.Evaluator,
	renderer expression.Renderer,
	logger *slog.Logger,
) *Evaluator {
	return &Evaluator{
		catalog:    catalog,
		windows:    windows,
		conditions: conditionEvaluator,
		renderer:   renderer,
		factory:    NewExecutionFactory(),
		logger:     logger.With("module", "trigger_evaluator"),
		now:        time.Now,
	}
}

// FromConditions is the stateless pass: it evaluates every candidate trigger
// without preconditions and without a multiple condition, and returns the
// executions to start.
func (e *Evaluator) FromConditions(ctx context.Context, execution *models.Execution, sourceFlow *models.Flow) ([]*models.Execution, error) {
	if reason := skipReason(execution, sourceFlow); reason != "" {
		e.logger.DebugContext(ctx, "skipping stateless evaluation", "reason", reason)

		return nil, nil
	}

	flows, err := e.catalog.AllEnabledFlows(ctx, execution.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled flows: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, flow := range flows {
		if !e.catalog.IsAllowedToTrigger(flow, execution) {
			continue
		}

		for _, trig := range e.catalog.FlowTriggers(flow) {
			if trig.Stateful() || !trig.WatchesState(execution.State.Current) {
				continue
			}

			ok, err := e.conditions.TestAll(trig.Conditions, flow, execution, nil)
			if err != nil {
				e.logger.WarnContext(ctx, "condition evaluation failed, trigger skipped",
					"flow", flow.UID(), "trigger_id", trig.ID, "error", err)

				continue
			}

			if !ok {
				continue
			}

			executions = append(executions, e.factory.Build(flow, trig, execution, triggerVariables(trig, execution)))
		}
	}

	return executions, nil
}

// FromPreconditions is the stateful pass: it evaluates every candidate
// trigger governed by a multiple condition, merges the partial results the
// execution contributes into the persisted window, and returns an execution
// for each window that became fulfilled. Fulfilled windows of resetting
// conditions and expired windows of the tenant are purged before returning.
func (e *Evaluator) FromPreconditions(ctx context.Context, execution *models.Execution, sourceFlow *models.Flow) ([]*models.Execution, error) {
	if reason := skipReason(execution, sourceFlow); reason != "" {
		e.logger.DebugContext(ctx, "skipping preconditions evaluation", "reason", reason)

		return nil, nil
	}

	flows, err := e.catalog.AllEnabledFlows(ctx, execution.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled flows: %w", err)
	}

	executions := make([]*models.Execution, 0)
	purgeable := make([]*models.MultipleConditionWindow, 0)

	for _, flow := range flows {
		if !e.catalog.IsAllowedToTrigger(flow, execution) {
			continue
		}

		for _, trig := range e.catalog.FlowTriggers(flow) {
			if !trig.Stateful() || !trig.WatchesState(execution.State.Current) {
				continue
			}

			fired, window, condition := e.evaluateStateful(ctx, flow, trig, execution)
			if fired {
				executions = append(executions, e.factory.Build(flow, trig, execution, triggerVariables(trig, execution)))

				if condition.Resets() {
					purgeable = append(purgeable, window)
				}
			}
		}
	}

	for _, window := range purgeable {
		if err := e.windows.Delete(ctx, window); err != nil {
			e.logger.ErrorContext(ctx, "failed to purge fulfilled window", "key", window.Key(), "error", err)
		}
	}

	e.purgeExpired(ctx, execution.TenantID)

	return executions, nil
}

// PurgeExpired deletes every expired window of the tenant. It backs the
// periodic sweep that bounds storage growth when no event ever revisits a
// window.
func (e *Evaluator) PurgeExpired(ctx context.Context, tenantID string) error {
	expired, err := e.windows.Expired(ctx, tenantID, e.now())
	if err != nil {
		return fmt.Errorf("failed to query expired windows: %w", err)
	}

	for _, window := range expired {
		if err := e.windows.Delete(ctx, window); err != nil {
			return fmt.Errorf("failed to purge expired window %s: %w", window.Key(), err)
		}
	}

	return nil
}

// evaluateStateful runs one candidate through the window machinery. It
// reports whether the candidate fired, along with the post-merge window and
// its governing multiple condition.
func (e *Evaluator) evaluateStateful(ctx context.Context, flow *models.Flow, trig models.Trigger, execution *models.Execution) (bool, *models.MultipleConditionWindow, *models.MultipleCondition) {
	logger := e.logger.With("flow", flow.UID(), "trigger_id", trig.ID)

	condition := governingCondition(trig)
	if condition == nil {
		return false, nil, nil
	}

	if len(condition.Conditions) == 0 {
		logger.WarnContext(ctx, "multiple condition declares no sub-conditions, trigger can never fire",
			"condition_id", condition.ID)

		return false, nil, nil
	}

	// Only true results are merged: a window entry, once true, stays true for
	// the window's lifetime. An event contributing nothing leaves no trace
	// and opens no window.
	results := make(map[string]bool)

	for name, sub := range condition.Conditions {
		ok, err := e.conditions.Test(sub, flow, execution, nil)
		if err != nil {
			logger.WarnContext(ctx, "sub-condition evaluation failed", "sub_condition", name, "error", err)

			continue
		}

		if ok {
			results[name] = true
		}
	}

	if len(results) == 0 {
		return false, nil, nil
	}

	correlationKey, err := e.correlationKey(condition, flow, execution)
	if err != nil {
		logger.WarnContext(ctx, "failed to render correlation key, trigger skipped", "error", err)

		return false, nil, nil
	}

	now := e.now()

	window, err := e.windows.GetOrCreate(ctx, flow, condition, correlationKey, now)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get or create window", "error", err)

		return false, nil, nil
	}

	if window.Expired(now) {
		logger.DebugContext(ctx, "window expired, contribution dropped", "key", window.Key())

		return false, nil, nil
	}

	saved, err := e.windows.Save(ctx, []*models.MultipleConditionWindow{window.Merge(results)})
	if err != nil || len(saved) == 0 {
		logger.ErrorContext(ctx, "failed to save window", "key", window.Key(), "error", err)

		return false, nil, nil
	}

	merged := saved[0]

	if !merged.Fulfilled(condition) {
		return false, nil, nil
	}

	ok, err := e.conditions.TestAll(trig.Conditions, flow, execution, nil)
	if err != nil {
		logger.WarnContext(ctx, "condition evaluation failed, trigger skipped", "error", err)

		return false, nil, nil
	}

	if !ok {
		return false, nil, nil
	}

	return true, merged, condition
}

// correlationKey renders the condition's correlation expression against the
// triggering execution. No expression means one window per flow+condition
// pair.
func (e *Evaluator) correlationKey(condition *models.MultipleCondition, flow *models.Flow, execution *models.Execution) (string, error) {
	if condition.CorrelationKey == "" {
		return "", nil
	}

	return e.renderer.Render(condition.CorrelationKey, expression.Variables(flow, execution, nil))
}

// purgeExpired is the best-effort in-band sweep after a preconditions pass.
func (e *Evaluator) purgeExpired(ctx context.Context, tenantID string) {
	if err := e.PurgeExpired(ctx, tenantID); err != nil {
		e.logger.ErrorContext(ctx, "failed to purge expired windows", "tenant_id", tenantID, "error", err)
	}
}

// governingCondition resolves the single multiple condition that governs a
// stateful trigger: the explicit one when declared, otherwise the implicit
// one synthesized from preconditions.
func governingCondition(trig models.Trigger) *models.MultipleCondition {
	if condition := trig.MultipleCondition(); condition != nil {
		return condition
	}

	if trig.Preconditions != nil {
		return trig.Preconditions.AsMultipleCondition()
	}

	return nil
}

// skipReason reports why an event must not be evaluated at all. Empty means
// evaluate.
func skipReason(execution *models.Execution, sourceFlow *models.Flow) string {
	switch {
	case execution == nil || sourceFlow == nil:
		return "missing execution or source flow"
	case execution.IsTest():
		return "test executions never trigger"
	case sourceFlow.Disabled:
		return "source flow is disabled"
	case len(sourceFlow.Triggers) == 0:
		return "source flow has no triggers"
	default:
		return ""
	}
}

// triggerVariables is the provenance payload a fired execution starts with.
func triggerVariables(trig models.Trigger, execution *models.Execution) map[string]any {
	return map[string]any{
		"trigger": map[string]any{
			"id":           trig.ID,
			"execution_id": execution.ID,
			"namespace":    execution.Namespace,
			"flow_id":      execution.FlowID,
			"state":        string(execution.State.Current),
		},
	}
}
