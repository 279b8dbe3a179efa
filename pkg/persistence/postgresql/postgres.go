// Package postgresql provides the PostgreSQL persistence backend for flows
// and multiple-condition windows.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/floworc/floworc/pkg/persistence"
	"github.com/floworc/floworc/pkg/persistence/sqlbase"
)

// Persistence implements the storage contracts on PostgreSQL.
type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	flowRepo   *FlowRepository
	windowRepo *WindowRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence connects, runs migrations and returns the backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		flowRepo:   NewFlowRepository(database, logger),
		windowRepo: NewWindowRepository(database, logger),
	}, nil
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) WindowRepository() persistence.WindowRepository {
	return p.windowRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
