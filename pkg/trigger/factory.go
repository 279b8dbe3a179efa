package trigger

import (
	"github.com/google/uuid"

	"github.com/floworc/floworc/pkg/models"
)

// ExecutionFactory builds the executions a fired trigger produces.
type ExecutionFactory struct{}

// NewExecutionFactory creates an execution factory.
func NewExecutionFactory() *ExecutionFactory {
	return &ExecutionFactory{}
}

// Build constructs a fresh execution of the target flow, caused by the given
// trigger and source execution. The result carries the target flow's own
// labels plus the system provenance labels; the correlation id is propagated
// from the source execution when present, minted otherwise.
func (f *ExecutionFactory) Build(target *models.Flow, trigger models.Trigger, source *models.Execution, outputs map[string]any) *models.Execution {
	correlationID, ok := source.Label(models.LabelCorrelationID)
	if !ok {
		correlationID = newID()
	}

	labels := models.MergeLabels(target.Labels, []models.Label{
		{Key: models.LabelFrom, Value: models.LabelFromTrigger},
		{Key: models.LabelCorrelationID, Value: correlationID},
	})

	return &models.Execution{
		ID:           newID(),
		TenantID:     target.TenantID,
		Namespace:    target.Namespace,
		FlowID:       target.ID,
		FlowRevision: target.Revision,
		State:        models.NewState(),
		Outputs:      outputs,
		Labels:       labels,
		Kind:         models.ExecutionKindNormal,
	}
}

// newID returns a time-ordered id, falling back to a random one when the
// clock source misbehaves.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
