// Package conditions evaluates trigger conditions against executions.
package conditions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/floworc/floworc/pkg/expression"
	"github.com/floworc/floworc/pkg/models"
)

// ErrMultipleConditionNotTestable is returned when a multiple condition is
// passed to Test; multiple conditions are only evaluated sub-condition by
// sub-condition through the window machinery.
var ErrMultipleConditionNotTestable = errors.New("multiple condition cannot be tested directly")

// Evaluator tests a single condition against a (flow, execution) pair. It is
// stateless and never mutates its inputs.
type Evaluator struct {
	renderer expression.Renderer
}

func NewEvaluator(renderer expression.Renderer) *Evaluator {
	return &Evaluator{renderer: renderer}
}

// Test evaluates one condition. extraVariables are exposed to expression
// conditions in addition to the flow/execution context.
func (e *Evaluator) Test(condition models.Condition, flow *models.Flow, execution *models.Execution, extraVariables map[string]any) (bool, error) {
	switch condition.Kind {
	case models.ConditionKindExpression:
		return e.testExpression(condition, flow, execution, extraVariables)
	case models.ConditionKindExecutionFlow:
		return testExecutionFlow(condition, execution), nil
	case models.ConditionKindExecutionNamespace:
		return testExecutionNamespace(condition, execution), nil
	case models.ConditionKindExecutionStatus:
		return testExecutionStatus(condition, execution), nil
	case models.ConditionKindExecutionLabels:
		return testExecutionLabels(condition, execution), nil
	case models.ConditionKindMultiple:
		return false, ErrMultipleConditionNotTestable
	default:
		return false, fmt.Errorf("unknown condition kind %q", condition.Kind)
	}
}

// TestAll evaluates conditions as a logical AND, skipping multiple-condition
// members. An empty list is vacuously true.
func (e *Evaluator) TestAll(conditions []models.Condition, flow *models.Flow, execution *models.Execution, extraVariables map[string]any) (bool, error) {
	for _, condition := range conditions {
		if condition.Kind == models.ConditionKindMultiple {
			continue
		}

		ok, err := e.Test(condition, flow, execution, extraVariables)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func (e *Evaluator) testExpression(condition models.Condition, flow *models.Flow, execution *models.Execution, extraVariables map[string]any) (bool, error) {
	rendered, err := e.renderer.Render(condition.Expression, expression.Variables(flow, execution, extraVariables))
	if err != nil {
		return false, fmt.Errorf("failed to render condition expression: %w", err)
	}

	rendered = strings.TrimSpace(rendered)

	return rendered != "" && rendered != "false", nil
}

func testExecutionFlow(condition models.Condition, execution *models.Execution) bool {
	if execution.Namespace != condition.Namespace || execution.FlowID != condition.FlowID {
		return false
	}

	if len(condition.In) == 0 {
		return true
	}

	return stateIn(execution.State.Current, condition.In)
}

func testExecutionNamespace(condition models.Condition, execution *models.Execution) bool {
	if condition.Prefix {
		return strings.HasPrefix(execution.Namespace, condition.Namespace)
	}

	return execution.Namespace == condition.Namespace
}

func testExecutionStatus(condition models.Condition, execution *models.Execution) bool {
	current := execution.State.Current

	if len(condition.In) > 0 && !stateIn(current, condition.In) {
		return false
	}

	if len(condition.NotIn) > 0 && stateIn(current, condition.NotIn) {
		return false
	}

	return true
}

func testExecutionLabels(condition models.Condition, execution *models.Execution) bool {
	for _, required := range condition.Labels {
		value, ok := execution.Label(required.Key)
		if !ok || value != required.Value {
			return false
		}
	}

	return true
}

func stateIn(state models.StateType, states []models.StateType) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}

	return false
}
