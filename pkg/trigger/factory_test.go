package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floworc/floworc/pkg/models"
)

func TestExecutionFactory_Build(t *testing.T) {
	factory := NewExecutionFactory()

	target := downstream()
	source := executionOf(flowA(), models.StateSuccess)
	trig := target.Triggers[0]

	built := factory.Build(target, trig, source, map[string]any{"trigger": map[string]any{"id": trig.ID}})

	assert.NotEmpty(t, built.ID)
	assert.NotEqual(t, source.ID, built.ID)
	assert.Equal(t, target.TenantID, built.TenantID)
	assert.Equal(t, target.Namespace, built.Namespace)
	assert.Equal(t, target.ID, built.FlowID)
	assert.Equal(t, target.Revision, built.FlowRevision)
	assert.Equal(t, models.StateCreated, built.State.Current)
	assert.Equal(t, models.ExecutionKindNormal, built.Kind)
	assert.NotNil(t, built.Outputs["trigger"])
}

func TestExecutionFactory_Build_FreshIdentities(t *testing.T) {
	factory := NewExecutionFactory()

	target := downstream()
	source := executionOf(flowA(), models.StateSuccess)

	first := factory.Build(target, target.Triggers[0], source, nil)
	second := factory.Build(target, target.Triggers[0], source, nil)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestExecutionFactory_Build_CorrelationID(t *testing.T) {
	factory := NewExecutionFactory()
	target := downstream()

	source := executionOf(flowA(), models.StateSuccess)
	source.Labels = []models.Label{{Key: models.LabelCorrelationID, Value: "corr-7"}}

	built := factory.Build(target, target.Triggers[0], source, nil)

	value, ok := built.Label(models.LabelCorrelationID)
	require.True(t, ok)
	assert.Equal(t, "corr-7", value)

	// without a source correlation id a fresh one is minted
	bare := factory.Build(target, target.Triggers[0], executionOf(flowA(), models.StateSuccess), nil)

	minted, ok := bare.Label(models.LabelCorrelationID)
	require.True(t, ok)
	assert.NotEmpty(t, minted)
	assert.NotEqual(t, "corr-7", minted)
}
