// Package trigger implements cross-flow trigger evaluation: the stateless
// conditions pass, the stateful preconditions pass over persisted windows,
// and the construction of triggered executions.
package trigger

import (
	"context"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
)

// FlowCatalog is the read-only view of flow definitions the evaluator works
// against. Implementations may cache; the evaluator treats every call as
// authoritative for the current event.
type FlowCatalog interface {
	// AllEnabledFlows returns every enabled flow of the tenant.
	AllEnabledFlows(ctx context.Context, tenantID string) ([]*models.Flow, error)

	// FlowTriggers returns the enabled flow-type triggers of a flow.
	FlowTriggers(flow *models.Flow) []models.Trigger

	// IsAllowedToTrigger reports whether the execution may trigger the
	// candidate flow. The default rule forbids a flow from triggering itself.
	IsAllowedToTrigger(candidate *models.Flow, execution *models.Execution) bool
}

// Catalog is the default FlowCatalog over a flow repository.
type Catalog struct {
	flows persistence.FlowRepository
}

var _ FlowCatalog = (*Catalog)(nil)

// NewCatalog creates a catalog backed by the given repository.
func NewCatalog(flows persistence.FlowRepository) *Catalog {
	return &Catalog{flows: flows}
}

// AllEnabledFlows lists the tenant's flows, dropping disabled ones.
func (c *Catalog) AllEnabledFlows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	flows, err := c.flows.Flows(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.Flow, 0, len(flows))

	for _, flow := range flows {
		if flow.Disabled {
			continue
		}

		enabled = append(enabled, flow)
	}

	return enabled, nil
}

// FlowTriggers returns the flow's enabled triggers of type flow.
func (c *Catalog) FlowTriggers(flow *models.Flow) []models.Trigger {
	triggers := make([]models.Trigger, 0, len(flow.Triggers))

	for _, trigger := range flow.Triggers {
		if trigger.Type != models.TriggerTypeFlow || trigger.Disabled {
			continue
		}

		triggers = append(triggers, trigger)
	}

	return triggers
}

// IsAllowedToTrigger forbids self-triggering: an execution never triggers the
// flow it belongs to, which would loop forever.
func (c *Catalog) IsAllowedToTrigger(candidate *models.Flow, execution *models.Execution) bool {
	return !candidate.IsOwnerOf(execution)
}
