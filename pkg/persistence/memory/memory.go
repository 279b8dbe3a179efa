// Package memory provides a goroutine-safe in-memory persistence backend,
// intended for tests and single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
)

// Persistence is a map-backed implementation of the storage contracts. The
// mutex gives the per-key atomic merge the window store requires within one
// process; multi-worker deployments need a shared backend instead.
type Persistence struct {
	mu      sync.RWMutex
	flows   map[string]*models.Flow
	windows map[string]*models.MultipleConditionWindow
}

var _ persistence.Persistence = (*Persistence)(nil)

func NewPersistence() *Persistence {
	return &Persistence{
		flows:   make(map[string]*models.Flow),
		windows: make(map[string]*models.MultipleConditionWindow),
	}
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p
}

func (p *Persistence) WindowRepository() persistence.WindowRepository {
	return p
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) Flows(_ context.Context, tenantID string) ([]*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flows := make([]*models.Flow, 0)

	for _, flow := range p.flows {
		if flow.TenantID == tenantID {
			flows = append(flows, flow)
		}
	}

	return flows, nil
}

func (p *Persistence) FlowByID(_ context.Context, tenantID, namespace, id string) (*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flow, ok := p.flows[flowKey(tenantID, namespace, id)]
	if !ok {
		return nil, persistence.NewFlowError("FlowByID", namespace, id, persistence.ErrFlowNotFound)
	}

	return flow, nil
}

func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.flows[flowKey(flow.TenantID, flow.Namespace, flow.ID)] = flow

	return nil
}

func (p *Persistence) DeleteFlow(_ context.Context, tenantID, namespace, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := flowKey(tenantID, namespace, id)
	if _, ok := p.flows[key]; !ok {
		return persistence.NewFlowError("DeleteFlow", namespace, id, persistence.ErrFlowNotFound)
	}

	delete(p.flows, key)

	return nil
}

func (p *Persistence) GetOrCreate(_ context.Context, flow *models.Flow, condition *models.MultipleCondition, correlationKey string, now time.Time) (*models.MultipleConditionWindow, error) {
	created, err := models.NewMultipleConditionWindow(flow, condition, correlationKey, now)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.windows[created.Key()]; ok {
		return copyWindow(existing), nil
	}

	p.windows[created.Key()] = created

	return copyWindow(created), nil
}

func (p *Persistence) Save(_ context.Context, windows []*models.MultipleConditionWindow) ([]*models.MultipleConditionWindow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	saved := make([]*models.MultipleConditionWindow, 0, len(windows))

	for _, window := range windows {
		merged := window

		if existing, ok := p.windows[window.Key()]; ok {
			merged = existing.Merge(window.Results)
		}

		p.windows[window.Key()] = merged
		saved = append(saved, copyWindow(merged))
	}

	return saved, nil
}

func (p *Persistence) Delete(_ context.Context, window *models.MultipleConditionWindow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.windows, window.Key())

	return nil
}

func (p *Persistence) Expired(_ context.Context, tenantID string, now time.Time) ([]*models.MultipleConditionWindow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	expired := make([]*models.MultipleConditionWindow, 0)

	for _, window := range p.windows {
		if window.TenantID == tenantID && window.Expired(now) {
			expired = append(expired, copyWindow(window))
		}
	}

	return expired, nil
}

func flowKey(tenantID, namespace, id string) string {
	return tenantID + "/" + namespace + "/" + id
}

func copyWindow(window *models.MultipleConditionWindow) *models.MultipleConditionWindow {
	return window.Merge(nil)
}
