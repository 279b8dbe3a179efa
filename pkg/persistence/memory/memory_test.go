package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
)

func testFlow() *models.Flow {
	return &models.Flow{
		ID:        "downstream",
		Namespace: "company.team",
		TenantID:  "tenant-1",
		Revision:  1,
	}
}

func testCondition() *models.MultipleCondition {
	return &models.MultipleCondition{
		ID: "both-upstreams",
		Conditions: map[string]models.Condition{
			"a": {Kind: models.ConditionKindExecutionFlow, Namespace: "company.team", FlowID: "flow-a"},
			"b": {Kind: models.ConditionKindExecutionFlow, Namespace: "company.team", FlowID: "flow-b"},
		},
		Window: &models.TimeWindow{Type: models.TimeWindowDuration, Window: models.Duration{Duration: time.Hour}},
	}
}

func TestPersistence_Flows(t *testing.T) {
	p := NewPersistence()

	require.NoError(t, p.SaveFlow(t.Context(), testFlow()))

	flows, err := p.Flows(t.Context(), "tenant-1")
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	flows, err = p.Flows(t.Context(), "other-tenant")
	require.NoError(t, err)
	assert.Empty(t, flows)

	flow, err := p.FlowByID(t.Context(), "tenant-1", "company.team", "downstream")
	require.NoError(t, err)
	assert.Equal(t, "downstream", flow.ID)

	_, err = p.FlowByID(t.Context(), "tenant-1", "company.team", "missing")
	assert.True(t, persistence.IsFlowNotFound(err))

	require.NoError(t, p.DeleteFlow(t.Context(), "tenant-1", "company.team", "downstream"))
	err = p.DeleteFlow(t.Context(), "tenant-1", "company.team", "downstream")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestPersistence_GetOrCreate(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	window, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "order-42", now)
	require.NoError(t, err)
	assert.Empty(t, window.Results)

	// merge a partial result, then get again: the existing row comes back
	_, err = p.Save(t.Context(), []*models.MultipleConditionWindow{window.Merge(map[string]bool{"a": true})})
	require.NoError(t, err)

	again, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "order-42", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, again.Results)
}

func TestPersistence_Save_Merges(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	window, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "", now)
	require.NoError(t, err)

	saved, err := p.Save(t.Context(), []*models.MultipleConditionWindow{window.Merge(map[string]bool{"a": true})})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, map[string]bool{"a": true}, saved[0].Results)

	saved, err = p.Save(t.Context(), []*models.MultipleConditionWindow{window.Merge(map[string]bool{"b": true})})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	// the post-merge row carries both contributions
	assert.Equal(t, map[string]bool{"a": true, "b": true}, saved[0].Results)
}

func TestPersistence_Save_ConcurrentNoLostUpdate(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	window, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "order-42", now)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for _, name := range []string{"a", "b"} {
		wg.Add(1)

		go func(name string) {
			defer wg.Done()

			_, err := p.Save(t.Context(), []*models.MultipleConditionWindow{
				window.Merge(map[string]bool{name: true}),
			})
			assert.NoError(t, err)
		}(name)
	}

	wg.Wait()

	final, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "order-42", now)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, final.Results)
}

func TestPersistence_Delete(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	window, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "", now)
	require.NoError(t, err)

	require.NoError(t, p.Delete(t.Context(), window))

	recreated, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "", now)
	require.NoError(t, err)
	assert.Empty(t, recreated.Results)
}

func TestPersistence_Expired(t *testing.T) {
	p := NewPersistence()
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	window, err := p.GetOrCreate(t.Context(), testFlow(), testCondition(), "", now)
	require.NoError(t, err)

	expired, err := p.Expired(t.Context(), "tenant-1", now)
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = p.Expired(t.Context(), "tenant-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, window.Key(), expired[0].Key())

	// other tenants never see it
	expired, err = p.Expired(t.Context(), "other-tenant", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)
}
