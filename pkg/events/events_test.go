package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floworc/floworc/pkg/models"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(ExecutionUpdatedEvent, "tenant-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, ExecutionUpdatedEvent, event.Type)
	assert.Equal(t, "tenant-1", event.TenantID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestExecutionUpdated_Validate(t *testing.T) {
	event := ExecutionUpdated{
		BaseEvent: NewBaseEvent(ExecutionUpdatedEvent, "tenant-1"),
		Execution: &models.Execution{
			ID:        "exec-1",
			Namespace: "company.team",
			FlowID:    "flow-a",
			State:     models.State{Current: models.StateSuccess},
		},
	}

	require.NoError(t, event.Validate())
	assert.Equal(t, ExecutionUpdatedEvent, event.GetType())

	event.Execution = nil
	assert.Error(t, event.Validate())
}

func TestExecutionTriggered_Validate(t *testing.T) {
	event := ExecutionTriggered{
		BaseEvent:         NewBaseEvent(ExecutionTriggeredEvent, "tenant-1"),
		SourceExecutionID: "exec-1",
	}

	assert.Error(t, event.Validate())

	event.Execution = &models.Execution{
		ID:        "exec-2",
		Namespace: "company.team",
		FlowID:    "downstream",
		State:     models.State{Current: models.StateCreated},
	}
	require.NoError(t, event.Validate())
	assert.Equal(t, ExecutionTriggeredEvent, event.GetType())
}
