// Package expression renders string-valued condition parameters against an
// execution context.
package expression

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/floworc/floworc/pkg/models"
)

// Renderer evaluates an expression against a variable map and returns the
// textual result. Implementations must be side-effect-free.
type Renderer interface {
	Render(expression string, vars map[string]any) (string, error)
}

// ExprRenderer is the default Renderer, backed by the expr language.
type ExprRenderer struct{}

func NewExprRenderer() *ExprRenderer {
	return &ExprRenderer{}
}

// Render compiles and runs the expression with the given variables in scope.
// Missing variables evaluate to nil instead of failing the compile.
func (r *ExprRenderer) Render(expression string, vars map[string]any) (string, error) {
	if vars == nil {
		vars = make(map[string]any)
	}

	program, err := expr.Compile(expression, expr.Env(vars), expr.AllowUndefinedVariables())
	if err != nil {
		return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}

	output, err := expr.Run(program, vars)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	if output == nil {
		return "", nil
	}

	return fmt.Sprintf("%v", output), nil
}

// Variables builds the variable map exposed to condition expressions for a
// (flow, execution) pair.
func Variables(flow *models.Flow, execution *models.Execution, extra map[string]any) map[string]any {
	labels := make(map[string]string, len(execution.Labels))
	for _, label := range execution.Labels {
		labels[label.Key] = label.Value
	}

	vars := map[string]any{
		"flow": map[string]any{
			"id":        flow.ID,
			"namespace": flow.Namespace,
			"tenant_id": flow.TenantID,
			"revision":  flow.Revision,
		},
		"execution": map[string]any{
			"id":            execution.ID,
			"flow_id":       execution.FlowID,
			"namespace":     execution.Namespace,
			"tenant_id":     execution.TenantID,
			"flow_revision": execution.FlowRevision,
			"state":         string(execution.State.Current),
			"labels":        labels,
		},
		"outputs": execution.Outputs,
	}

	for key, value := range extra {
		vars[key] = value
	}

	return vars
}
