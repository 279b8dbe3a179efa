package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlow() *Flow {
	return &Flow{
		ID:        "downstream",
		Namespace: "company.team",
		TenantID:  "tenant-1",
		Revision:  3,
	}
}

func testMultipleCondition() *MultipleCondition {
	return &MultipleCondition{
		ID: "both-upstreams",
		Conditions: map[string]Condition{
			"a": {Kind: ConditionKindExecutionFlow, Namespace: "company.team", FlowID: "flow-a"},
			"b": {Kind: ConditionKindExecutionFlow, Namespace: "company.team", FlowID: "flow-b"},
		},
		Window: &TimeWindow{Type: TimeWindowDuration, Window: Duration{time.Hour}},
	}
}

func TestNewMultipleConditionWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	window, err := NewMultipleConditionWindow(testFlow(), testMultipleCondition(), "order-42", now)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", window.TenantID)
	assert.Equal(t, "company.team", window.Namespace)
	assert.Equal(t, "downstream", window.FlowID)
	assert.Equal(t, "both-upstreams", window.ConditionID)
	assert.Equal(t, "order-42", window.CorrelationKey)
	assert.Empty(t, window.Results)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), window.WindowStart)
	assert.Equal(t, time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC), window.WindowEnd)
}

func TestMultipleConditionWindow_Key(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	window, err := NewMultipleConditionWindow(testFlow(), testMultipleCondition(), "order-42", now)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1|company.team|downstream|both-upstreams|order-42", window.Key())

	other, err := NewMultipleConditionWindow(testFlow(), testMultipleCondition(), "order-43", now)
	require.NoError(t, err)

	// separate correlation values accumulate in separate windows
	assert.NotEqual(t, window.Key(), other.Key())
}

func TestMultipleConditionWindow_Expired(t *testing.T) {
	window := &MultipleConditionWindow{
		WindowEnd: time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC),
	}

	assert.False(t, window.Expired(time.Date(2025, 3, 10, 10, 59, 59, 0, time.UTC)))
	assert.True(t, window.Expired(time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)))
	assert.True(t, window.Expired(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))
}

func TestMultipleConditionWindow_Fulfilled(t *testing.T) {
	condition := testMultipleCondition()

	window := &MultipleConditionWindow{Results: map[string]bool{"a": true}}
	assert.False(t, window.Fulfilled(condition))

	window.Results["b"] = true
	assert.True(t, window.Fulfilled(condition))

	window.Results["b"] = false
	assert.False(t, window.Fulfilled(condition))
}

func TestMultipleConditionWindow_Fulfilled_NoSubConditions(t *testing.T) {
	// a malformed condition with zero sub-conditions can never fire
	window := &MultipleConditionWindow{Results: map[string]bool{}}

	assert.False(t, window.Fulfilled(&MultipleCondition{ID: "empty", Conditions: map[string]Condition{}}))
}

func TestMultipleConditionWindow_Merge(t *testing.T) {
	window := &MultipleConditionWindow{Results: map[string]bool{"a": true}}

	merged := window.Merge(map[string]bool{"b": true})

	assert.Equal(t, map[string]bool{"a": true, "b": true}, merged.Results)
	// the receiver is untouched
	assert.Equal(t, map[string]bool{"a": true}, window.Results)
}
