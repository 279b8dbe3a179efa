package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLabels(t *testing.T) {
	merged := MergeLabels(
		[]Label{{Key: "team", Value: "data"}, {Key: "env", Value: "staging"}},
		[]Label{{Key: "env", Value: "production"}, {Key: "owner", Value: "ops"}},
	)

	require.Len(t, merged, 3)

	// later occurrence overwrites but keeps the original position
	assert.Equal(t, Label{Key: "team", Value: "data"}, merged[0])
	assert.Equal(t, Label{Key: "env", Value: "production"}, merged[1])
	assert.Equal(t, Label{Key: "owner", Value: "ops"}, merged[2])
}

func TestMergeLabels_Empty(t *testing.T) {
	assert.Empty(t, MergeLabels())
	assert.Empty(t, MergeLabels(nil, nil))
}

func TestExecution_Label(t *testing.T) {
	execution := &Execution{
		Labels: []Label{{Key: LabelCorrelationID, Value: "corr-1"}},
	}

	value, ok := execution.Label(LabelCorrelationID)
	assert.True(t, ok)
	assert.Equal(t, "corr-1", value)

	_, ok = execution.Label("missing")
	assert.False(t, ok)
}

func TestExecution_IsTest(t *testing.T) {
	assert.True(t, (&Execution{Kind: ExecutionKindTest}).IsTest())
	assert.False(t, (&Execution{Kind: ExecutionKindNormal}).IsTest())
	assert.False(t, (&Execution{}).IsTest())
}

func TestExecution_WithState(t *testing.T) {
	execution := &Execution{
		ID:    "exec-1",
		State: NewState(),
	}

	updated, err := execution.WithState(StateRunning)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, updated.State.Current)
	assert.Equal(t, StateCreated, execution.State.Current)
	assert.Equal(t, "exec-1", updated.ID)
}
