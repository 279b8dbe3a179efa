package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floworc/floworc/pkg/models"
)

func TestExprRenderer_Render(t *testing.T) {
	renderer := NewExprRenderer()

	out, err := renderer.Render(`"order-" + id`, map[string]any{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "order-42", out)

	out, err = renderer.Render(`1 + 2`, nil)
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestExprRenderer_Render_UndefinedVariable(t *testing.T) {
	// undefined variables render blank instead of failing the evaluation
	out, err := NewExprRenderer().Render(`missing`, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExprRenderer_Render_CompileError(t *testing.T) {
	_, err := NewExprRenderer().Render(`((`, nil)
	assert.Error(t, err)
}

func TestVariables(t *testing.T) {
	flow := &models.Flow{
		ID:        "downstream",
		Namespace: "company.team",
		TenantID:  "tenant-1",
		Revision:  2,
	}
	execution := &models.Execution{
		ID:        "exec-1",
		Namespace: "company.team",
		FlowID:    "flow-a",
		State:     models.State{Current: models.StateSuccess},
		Outputs:   map[string]any{"order_id": "order-42"},
		Labels:    []models.Label{{Key: "env", Value: "production"}},
	}

	vars := Variables(flow, execution, map[string]any{"extra": "value"})

	renderer := NewExprRenderer()

	out, err := renderer.Render(`outputs.order_id`, vars)
	require.NoError(t, err)
	assert.Equal(t, "order-42", out)

	out, err = renderer.Render(`execution.labels.env`, vars)
	require.NoError(t, err)
	assert.Equal(t, "production", out)

	out, err = renderer.Render(`flow.id + "@" + execution.state`, vars)
	require.NoError(t, err)
	assert.Equal(t, "downstream@SUCCESS", out)

	out, err = renderer.Render(`extra`, vars)
	require.NoError(t, err)
	assert.Equal(t, "value", out)
}
