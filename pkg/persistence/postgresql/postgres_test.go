package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
	"github.com/floworc/floworc/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"multiple_condition_windows", "flows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("floworc_test"),
			postgres.WithUsername("floworc"),
			postgres.WithPassword("floworc"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx
}

func testFlow() *models.Flow {
	return &models.Flow{
		ID:        "downstream",
		Namespace: "company.team",
		TenantID:  "tenant-1",
		Revision:  1,
		Labels:    []models.Label{{Key: "team", Value: "data"}},
		Triggers: []models.Trigger{
			{
				ID:     "after-a",
				Type:   models.TriggerTypeFlow,
				States: []models.StateType{models.StateSuccess},
				Conditions: []models.Condition{
					{Kind: models.ConditionKindExecutionFlow, Namespace: "company.team", FlowID: "flow-a"},
				},
			},
		},
	}
}

func TestFlowRepository_SaveAndLoad(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.FlowRepository()

	require.NoError(t, repo.SaveFlow(ctx, testFlow()))

	loaded, err := repo.FlowByID(ctx, "tenant-1", "company.team", "downstream")
	require.NoError(t, err)

	assert.Equal(t, "downstream", loaded.ID)
	assert.Equal(t, 1, loaded.Revision)
	assert.Equal(t, []models.Label{{Key: "team", Value: "data"}}, loaded.Labels)
	require.Len(t, loaded.Triggers, 1)
	assert.Equal(t, "after-a", loaded.Triggers[0].ID)
	assert.Equal(t, models.TriggerTypeFlow, loaded.Triggers[0].Type)
	require.Len(t, loaded.Triggers[0].Conditions, 1)
	assert.Equal(t, models.ConditionKindExecutionFlow, loaded.Triggers[0].Conditions[0].Kind)
}

func TestFlowRepository_Flows(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.FlowRepository()

	first := testFlow()
	second := testFlow()
	second.ID = "another"

	otherTenant := testFlow()
	otherTenant.TenantID = "tenant-2"

	require.NoError(t, repo.SaveFlow(ctx, first))
	require.NoError(t, repo.SaveFlow(ctx, second))
	require.NoError(t, repo.SaveFlow(ctx, otherTenant))

	flows, err := repo.Flows(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, flows, 2)
}

func TestFlowRepository_Upsert(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.FlowRepository()

	flow := testFlow()
	require.NoError(t, repo.SaveFlow(ctx, flow))

	flow.Revision = 2
	flow.Disabled = true
	require.NoError(t, repo.SaveFlow(ctx, flow))

	loaded, err := repo.FlowByID(ctx, "tenant-1", "company.team", "downstream")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Revision)
	assert.True(t, loaded.Disabled)
}

func TestFlowRepository_NotFound(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.FlowRepository()

	_, err := repo.FlowByID(ctx, "tenant-1", "company.team", "missing")
	assert.True(t, persistence.IsFlowNotFound(err))

	err = repo.DeleteFlow(ctx, "tenant-1", "company.team", "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowRepository_Delete(t *testing.T) {
	p, ctx := setupTestDB(t)

	repo := p.FlowRepository()

	require.NoError(t, repo.SaveFlow(ctx, testFlow()))
	require.NoError(t, repo.DeleteFlow(ctx, "tenant-1", "company.team", "downstream"))

	_, err := repo.FlowByID(ctx, "tenant-1", "company.team", "downstream")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestPersistence_HealthCheck(t *testing.T) {
	p, ctx := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}
