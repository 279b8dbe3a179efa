package models

import (
	"fmt"
	"time"
)

// StateType is the lifecycle state of an Execution.
type StateType string

const (
	StateCreated   StateType = "CREATED"
	StateQueued    StateType = "QUEUED"
	StateRunning   StateType = "RUNNING"
	StatePaused    StateType = "PAUSED"
	StateRestarted StateType = "RESTARTED"
	StateKilling   StateType = "KILLING"
	StateSuccess   StateType = "SUCCESS"
	StateWarning   StateType = "WARNING"
	StateFailed    StateType = "FAILED"
	StateKilled    StateType = "KILLED"
)

// stateTransitions is the fixed forward-only transition table. An execution
// state may only move to one of the states listed for its current state.
var stateTransitions = map[StateType][]StateType{
	StateCreated:   {StateQueued, StateRunning, StateKilling},
	StateQueued:    {StateRunning, StateKilling},
	StateRunning:   {StatePaused, StateKilling, StateSuccess, StateWarning, StateFailed},
	StatePaused:    {StateRunning, StateKilling},
	StateRestarted: {StateQueued, StateRunning, StateKilling},
	StateKilling:   {StateKilled, StateFailed},
	StateSuccess:   {},
	StateWarning:   {},
	StateFailed:    {StateRestarted},
	StateKilled:    {StateRestarted},
}

// IsTerminal reports whether the state ends an execution run.
func (s StateType) IsTerminal() bool {
	return s == StateSuccess || s == StateWarning || s == StateFailed || s == StateKilled
}

// CanTransitionTo reports whether the fixed transition table allows moving
// from s to next.
func (s StateType) CanTransitionTo(next StateType) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// StateHistory records one state transition with its timestamp.
type StateHistory struct {
	State     StateType `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// State holds the current execution state plus the full transition history.
type State struct {
	Current   StateType      `json:"current"`
	Histories []StateHistory `json:"histories"`
}

// NewState returns a State in the machine's start state.
func NewState() State {
	return State{
		Current: StateCreated,
		Histories: []StateHistory{
			{State: StateCreated, Timestamp: time.Now().UTC()},
		},
	}
}

// WithState returns a copy of s advanced to next, or an error when the
// transition table forbids the move.
func (s State) WithState(next StateType) (State, error) {
	if !s.Current.CanTransitionTo(next) {
		return s, fmt.Errorf("invalid state transition from %s to %s", s.Current, next)
	}

	histories := make([]StateHistory, len(s.Histories), len(s.Histories)+1)
	copy(histories, s.Histories)
	histories = append(histories, StateHistory{State: next, Timestamp: time.Now().UTC()})

	return State{Current: next, Histories: histories}, nil
}

// StartDate returns the timestamp of the first recorded state, if any.
func (s State) StartDate() (time.Time, bool) {
	if len(s.Histories) == 0 {
		return time.Time{}, false
	}

	return s.Histories[0].Timestamp, true
}
