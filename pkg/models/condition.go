package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ConditionKind discriminates the closed set of condition variants.
type ConditionKind string

const (
	// ConditionKindExpression evaluates a rendered expression; a blank result
	// or the literal "false" is false, anything else is true.
	ConditionKindExpression ConditionKind = "expression"
	// ConditionKindExecutionFlow matches the execution's owning flow identity.
	ConditionKindExecutionFlow ConditionKind = "execution-flow"
	// ConditionKindExecutionNamespace matches the execution's namespace,
	// exactly or by prefix.
	ConditionKindExecutionNamespace ConditionKind = "execution-namespace"
	// ConditionKindExecutionStatus matches the execution's current state
	// against membership lists.
	ConditionKindExecutionStatus ConditionKind = "execution-status"
	// ConditionKindExecutionLabels requires every listed label to be present
	// on the execution.
	ConditionKindExecutionLabels ConditionKind = "execution-labels"
	// ConditionKindMultiple groups named sub-conditions that must all become
	// true, possibly via separate events, within a validity window.
	ConditionKindMultiple ConditionKind = "multiple"
)

// Condition is a polymorphic boolean predicate over a (flow, execution)
// pair. Kind selects the variant; only the fields of that variant are read.
type Condition struct {
	Kind ConditionKind `json:"kind" validate:"required"`

	// expression
	Expression string `json:"expression,omitempty"`

	// execution-flow, execution-namespace
	Namespace string `json:"namespace,omitempty"`
	FlowID    string `json:"flow_id,omitempty"`
	Prefix    bool   `json:"prefix,omitempty"`

	// execution-status; execution-flow also honors In when set
	In    []StateType `json:"in,omitempty"`
	NotIn []StateType `json:"not_in,omitempty"`

	// execution-labels
	Labels []Label `json:"labels,omitempty"`

	// multiple
	Multiple *MultipleCondition `json:"multiple,omitempty"`
}

// Duration wraps time.Duration with human-readable JSON encoding ("24h",
// "30m"). A bare number is read as nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch value := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}

		d.Duration = parsed
	case float64:
		d.Duration = time.Duration(value)
	default:
		return fmt.Errorf("invalid duration value of type %T", raw)
	}

	return nil
}

// TimeWindowType selects how a window's validity interval is computed.
type TimeWindowType string

const (
	// TimeWindowDuration aligns fixed-length windows to the epoch: all events
	// inside the same period share one window.
	TimeWindowDuration TimeWindowType = "duration"
	// TimeWindowDailyDeadline opens at the start of the current day and
	// closes at a time of day; all contributors must arrive before it.
	TimeWindowDailyDeadline TimeWindowType = "daily-deadline"
)

// DefaultWindow is the validity interval used when a multiple condition does
// not declare one.
const DefaultWindow = 24 * time.Hour

// TimeWindow is the validity rule of a multiple-condition window.
type TimeWindow struct {
	Type     TimeWindowType `json:"type,omitempty"`
	Window   Duration       `json:"window,omitempty"`
	Deadline string         `json:"deadline,omitempty"` // "15:04", UTC
}

// Bounds computes the validity interval containing now.
func (w TimeWindow) Bounds(now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()

	switch w.Type {
	case TimeWindowDailyDeadline:
		deadline, err := time.Parse("15:04", w.Deadline)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid window deadline %q: %w", w.Deadline, err)
		}

		start := now.Truncate(24 * time.Hour)
		end := start.Add(time.Duration(deadline.Hour())*time.Hour + time.Duration(deadline.Minute())*time.Minute)

		return start, end, nil
	case TimeWindowDuration, "":
		window := w.Window.Duration
		if window <= 0 {
			window = DefaultWindow
		}

		start := now.Truncate(window)

		return start, start.Add(window), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown time window type %q", w.Type)
	}
}

// MultipleCondition is a named group of sub-conditions that must all become
// true before it is fulfilled, each possibly contributed by a different
// event over time, within a bounded validity window.
type MultipleCondition struct {
	ID         string               `json:"id"         validate:"required"`
	Conditions map[string]Condition `json:"conditions" validate:"required"`
	Window     *TimeWindow          `json:"window,omitempty"`

	// CorrelationKey is an optional expression rendered against the
	// triggering execution's outputs; when set, separate correlation values
	// accumulate in separate windows.
	CorrelationKey string `json:"correlation_key,omitempty"`

	// ResetOnSuccess controls whether the window is purged once fulfilled.
	// Defaults to true; false keeps the fulfilled window so later matches
	// keep firing against the same aggregate.
	ResetOnSuccess *bool `json:"reset_on_success,omitempty"`
}

// Resets reports whether a fulfilled window should be purged.
func (m *MultipleCondition) Resets() bool {
	return m.ResetOnSuccess == nil || *m.ResetOnSuccess
}

// WindowOrDefault returns the declared validity rule or the default duration
// window.
func (m *MultipleCondition) WindowOrDefault() TimeWindow {
	if m.Window != nil {
		return *m.Window
	}

	return TimeWindow{Type: TimeWindowDuration, Window: Duration{DefaultWindow}}
}

// FlowReference names an upstream flow a precondition waits for. When States
// is empty the terminal success states (SUCCESS, WARNING) are watched.
type FlowReference struct {
	Namespace string      `json:"namespace" validate:"required"`
	FlowID    string      `json:"flow_id"   validate:"required"`
	States    []StateType `json:"states,omitempty"`
}

// Preconditions is the convenience form of a multiple condition: one
// sub-condition per referenced flow, all sharing one window.
type Preconditions struct {
	ID             string          `json:"id"    validate:"required"`
	Flows          []FlowReference `json:"flows" validate:"required,dive"`
	Window         *TimeWindow     `json:"window,omitempty"`
	CorrelationKey string          `json:"correlation_key,omitempty"`
	ResetOnSuccess *bool           `json:"reset_on_success,omitempty"`
}

// AsMultipleCondition synthesizes the implicit multiple condition governing
// the preconditions: each flow reference becomes a sub-condition requiring an
// execution of that flow to reach one of the watched states.
func (p *Preconditions) AsMultipleCondition() *MultipleCondition {
	conditions := make(map[string]Condition, len(p.Flows))

	for _, ref := range p.Flows {
		states := ref.States
		if len(states) == 0 {
			states = []StateType{StateSuccess, StateWarning}
		}

		name := strings.ReplaceAll(ref.Namespace, ".", "_") + "_" + ref.FlowID
		conditions[name] = Condition{
			Kind:      ConditionKindExecutionFlow,
			Namespace: ref.Namespace,
			FlowID:    ref.FlowID,
			In:        states,
		}
	}

	return &MultipleCondition{
		ID:             p.ID,
		Conditions:     conditions,
		Window:         p.Window,
		CorrelationKey: p.CorrelationKey,
		ResetOnSuccess: p.ResetOnSuccess,
	}
}
