package models

import (
	"strings"
	"time"
)

// MultipleConditionWindow is the persisted, partially-filled aggregation
// state for one multiple-condition instance. It is the only mutable entity
// of the trigger engine; all updates go through the window store's atomic
// per-key merge.
type MultipleConditionWindow struct {
	TenantID       string          `json:"tenant_id"`
	Namespace      string          `json:"namespace"       validate:"required"`
	FlowID         string          `json:"flow_id"         validate:"required"`
	ConditionID    string          `json:"condition_id"    validate:"required"`
	CorrelationKey string          `json:"correlation_key,omitempty"`
	Results        map[string]bool `json:"results"`
	WindowStart    time.Time       `json:"window_start"`
	WindowEnd      time.Time       `json:"window_end"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewMultipleConditionWindow opens the window containing now for the given
// flow and multiple condition.
func NewMultipleConditionWindow(flow *Flow, condition *MultipleCondition, correlationKey string, now time.Time) (*MultipleConditionWindow, error) {
	start, end, err := condition.WindowOrDefault().Bounds(now)
	if err != nil {
		return nil, err
	}

	return &MultipleConditionWindow{
		TenantID:       flow.TenantID,
		Namespace:      flow.Namespace,
		FlowID:         flow.ID,
		ConditionID:    condition.ID,
		CorrelationKey: correlationKey,
		Results:        make(map[string]bool),
		WindowStart:    start,
		WindowEnd:      end,
		CreatedAt:      now.UTC(),
	}, nil
}

// Key is the derived identity the store keys rows by.
func (w *MultipleConditionWindow) Key() string {
	return strings.Join([]string{w.TenantID, w.Namespace, w.FlowID, w.ConditionID, w.CorrelationKey}, "|")
}

// Expired reports whether the validity interval has elapsed. An expired
// window must never fire; it is only eligible for purge.
func (w *MultipleConditionWindow) Expired(now time.Time) bool {
	return !now.UTC().Before(w.WindowEnd)
}

// Fulfilled reports whether every named sub-condition of the owning multiple
// condition has a true result. A condition with no sub-conditions is never
// fulfilled.
func (w *MultipleConditionWindow) Fulfilled(condition *MultipleCondition) bool {
	if len(condition.Conditions) == 0 {
		return false
	}

	for name := range condition.Conditions {
		if !w.Results[name] {
			return false
		}
	}

	return true
}

// Merge returns a copy of the window with the given results merged in: new
// entries add, existing entries are overwritten.
func (w *MultipleConditionWindow) Merge(results map[string]bool) *MultipleConditionWindow {
	merged := *w
	merged.Results = make(map[string]bool, len(w.Results)+len(results))

	for name, value := range w.Results {
		merged.Results[name] = value
	}

	for name, value := range results {
		merged.Results[name] = value
	}

	return &merged
}
