// Package events defines the event contracts of the trigger engine: the
// inbound execution state changes it consumes and the triggered executions it
// emits.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/floworc/floworc/pkg/models"
)

type EventType string

// Topic is the single stream all engine events travel on; the event type
// rides in message metadata.
const Topic = "floworc.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ExecutionUpdatedEvent signals an execution reached a new state. One is
	// consumed per state transition.
	ExecutionUpdatedEvent EventType = "execution.updated"

	// ExecutionTriggeredEvent carries one newly constructed execution a fired
	// flow trigger produced. The consumer is responsible for starting it
	// exactly once.
	ExecutionTriggeredEvent EventType = "execution.triggered"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the common envelope for an event.
func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
	}
}

// ExecutionUpdated is the inbound event: an execution transitioned to the
// carried state. The owning flow is resolved by the consumer.
type ExecutionUpdated struct {
	BaseEvent

	Execution *models.Execution `json:"execution"`
}

func (e ExecutionUpdated) GetType() EventType {
	return ExecutionUpdatedEvent
}

func (e ExecutionUpdated) Validate() error {
	if e.Execution == nil {
		return errors.New("execution updated event carries no execution")
	}

	return models.Validate(e.Execution)
}

// ExecutionTriggered is the outbound event: a flow trigger fired and
// constructed this execution.
type ExecutionTriggered struct {
	BaseEvent

	Execution         *models.Execution `json:"execution"`
	SourceExecutionID string            `json:"source_execution_id"`
}

func (e ExecutionTriggered) GetType() EventType {
	return ExecutionTriggeredEvent
}

func (e ExecutionTriggered) Validate() error {
	if e.Execution == nil {
		return errors.New("execution triggered event carries no execution")
	}

	return models.Validate(e.Execution)
}
