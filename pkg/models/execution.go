// Package models defines the core domain models for cross-flow trigger evaluation.
package models

// ExecutionKind distinguishes real runs from test runs. Test executions never
// feed the trigger engine.
type ExecutionKind string

const (
	ExecutionKindNormal ExecutionKind = "NORMAL"
	ExecutionKindTest   ExecutionKind = "TEST"
)

// System label keys attached by the trigger engine.
const (
	LabelCorrelationID = "system.correlationId"
	LabelFrom          = "system.from"

	LabelFromTrigger = "trigger"
)

// Label is one ordered key/value pair attached to an execution or flow.
type Label struct {
	Key   string `json:"key"   validate:"required"`
	Value string `json:"value"`
}

// MergeLabels combines label lists in order, deduplicating by key. A later
// occurrence of a key overwrites the earlier value but keeps its original
// position.
func MergeLabels(lists ...[]Label) []Label {
	merged := make([]Label, 0)
	index := make(map[string]int)

	for _, list := range lists {
		for _, label := range list {
			if at, ok := index[label.Key]; ok {
				merged[at].Value = label.Value

				continue
			}

			index[label.Key] = len(merged)
			merged = append(merged, label)
		}
	}

	return merged
}

// Execution is one run instance of a Flow. The identity is immutable after
// creation; only the state advances, via the fixed transition table.
type Execution struct {
	ID           string         `json:"id"            validate:"required"`
	TenantID     string         `json:"tenant_id"`
	Namespace    string         `json:"namespace"     validate:"required"`
	FlowID       string         `json:"flow_id"       validate:"required"`
	FlowRevision int            `json:"flow_revision"`
	State        State          `json:"state"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	Labels       []Label        `json:"labels,omitempty"`
	Kind         ExecutionKind  `json:"kind,omitempty"`
}

// IsTest reports whether the execution is a test run.
func (e *Execution) IsTest() bool {
	return e.Kind == ExecutionKindTest
}

// Label returns the value of the label with the given key.
func (e *Execution) Label(key string) (string, bool) {
	for _, label := range e.Labels {
		if label.Key == key {
			return label.Value, true
		}
	}

	return "", false
}

// WithState returns a copy of the execution advanced to the given state.
func (e *Execution) WithState(next StateType) (*Execution, error) {
	state, err := e.State.WithState(next)
	if err != nil {
		return nil, err
	}

	updated := *e
	updated.State = state

	return &updated, nil
}
