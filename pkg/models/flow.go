package models

// Flow is a named, versioned workflow definition owning zero or more
// triggers. A revision is immutable; publishing a change produces a new
// revision, never a mutation.
type Flow struct {
	ID        string    `json:"id"        validate:"required"`
	Namespace string    `json:"namespace" validate:"required"`
	TenantID  string    `json:"tenant_id"`
	Revision  int       `json:"revision"`
	Disabled  bool      `json:"disabled"`
	Labels    []Label   `json:"labels,omitempty"`
	Triggers  []Trigger `json:"triggers,omitempty"`
}

// UID identifies a flow across revisions.
func (f *Flow) UID() string {
	return f.TenantID + "/" + f.Namespace + "/" + f.ID
}

// IsOwnerOf reports whether the execution belongs to this flow, regardless of
// revision.
func (f *Flow) IsOwnerOf(execution *Execution) bool {
	return f.TenantID == execution.TenantID &&
		f.Namespace == execution.Namespace &&
		f.ID == execution.FlowID
}

// TriggerType discriminates trigger definitions. Only flow triggers are
// evaluated by this engine; the other kinds belong to external schedulers and
// receivers.
type TriggerType string

const (
	TriggerTypeFlow     TriggerType = "flow"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypePolling  TriggerType = "polling"
)

// Trigger is one trigger definition owned by a flow. For flow triggers,
// States is the non-empty set of execution states it listens for.
type Trigger struct {
	ID            string         `json:"id"   validate:"required"`
	Type          TriggerType    `json:"type" validate:"required"`
	Disabled      bool           `json:"disabled"`
	States        []StateType    `json:"states,omitempty"`
	Conditions    []Condition    `json:"conditions,omitempty"`
	Preconditions *Preconditions `json:"preconditions,omitempty"`
}

// WatchesState reports whether the trigger listens for the given state.
func (t *Trigger) WatchesState(state StateType) bool {
	for _, s := range t.States {
		if s == state {
			return true
		}
	}

	return false
}

// MultipleCondition returns the embedded multiple condition, if the trigger
// declares one among its conditions. At most one is expected.
func (t *Trigger) MultipleCondition() *MultipleCondition {
	for _, condition := range t.Conditions {
		if condition.Kind == ConditionKindMultiple && condition.Multiple != nil {
			return condition.Multiple
		}
	}

	return nil
}

// Stateful reports whether the trigger requires window state: it declares
// preconditions or embeds a multiple condition. Stateful triggers are
// evaluated only by the preconditions pass; all others only by the stateless
// pass. The partition is total and non-overlapping.
func (t *Trigger) Stateful() bool {
	return t.Preconditions != nil || t.MultipleCondition() != nil
}
