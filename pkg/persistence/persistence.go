// Package persistence provides the storage contracts for flows and
// multiple-condition windows.
package persistence

import (
	"context"
	"time"

	"github.com/floworc/floworc/pkg/models"
)

// FlowRepository is the minimal flow read/write contract the trigger engine
// needs. Reads are snapshots: a flow definition changing mid-evaluation
// resolves to either the old or new revision, never a torn mix.
type FlowRepository interface {
	// Flows returns every flow of the tenant, enabled or not.
	Flows(ctx context.Context, tenantID string) ([]*models.Flow, error)

	// FlowByID returns the current revision of a flow.
	FlowByID(ctx context.Context, tenantID, namespace, id string) (*models.Flow, error)

	SaveFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, tenantID, namespace, id string) error
}

// WindowRepository persists multiple-condition windows keyed by their derived
// window key. It must be safe for arbitrary concurrent callers across worker
// instances.
type WindowRepository interface {
	// GetOrCreate atomically fetches the window for the condition's current
	// validity interval, creating an empty one when none exists for the key.
	GetOrCreate(ctx context.Context, flow *models.Flow, condition *models.MultipleCondition, correlationKey string, now time.Time) (*models.MultipleConditionWindow, error)

	// Save upserts each window as one atomic read-modify-write per key: the
	// window's results are merged into the persisted row (new entries add,
	// existing entries are overwritten) and the post-merge rows are returned.
	// Two concurrent saves of different sub-condition results for the same
	// key must both survive.
	Save(ctx context.Context, windows []*models.MultipleConditionWindow) ([]*models.MultipleConditionWindow, error)

	// Delete purges a window row.
	Delete(ctx context.Context, window *models.MultipleConditionWindow) error

	// Expired returns every window of the tenant whose validity interval has
	// elapsed at now.
	Expired(ctx context.Context, tenantID string, now time.Time) ([]*models.MultipleConditionWindow, error)
}

// Persistence aggregates the storage contracts behind one backend.
type Persistence interface {
	FlowRepository() FlowRepository
	WindowRepository() WindowRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
