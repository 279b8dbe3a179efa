package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
)

// FlowRepository handles flow-definition database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// Flows returns every flow of the tenant.
func (r *FlowRepository) Flows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	query := `
		SELECT
			tenant_id
		  , namespace
		  , id
		  , revision
		  , disabled
		  , labels
		  , triggers
		FROM flows
		WHERE tenant_id = $1
		ORDER BY namespace, id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// FlowByID returns the current revision of a flow.
func (r *FlowRepository) FlowByID(ctx context.Context, tenantID, namespace, id string) (*models.Flow, error) {
	query := `
		SELECT
			tenant_id
		  , namespace
		  , id
		  , revision
		  , disabled
		  , labels
		  , triggers
		FROM flows
		WHERE tenant_id = $1 AND namespace = $2 AND id = $3
	`

	row := r.db.QueryRowContext(ctx, query, tenantID, namespace, id)

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("FlowByID", namespace, id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

// SaveFlow upserts the flow row, bumping the stored revision on update.
func (r *FlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) error {
	labelsJSON, err := json.Marshal(flow.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal flow labels: %w", err)
	}

	triggersJSON, err := json.Marshal(flow.Triggers)
	if err != nil {
		return fmt.Errorf("failed to marshal flow triggers: %w", err)
	}

	query := `
		INSERT INTO flows (tenant_id, namespace, id, revision, disabled, labels, triggers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, namespace, id) DO UPDATE SET
			revision = EXCLUDED.revision,
			disabled = EXCLUDED.disabled,
			labels = EXCLUDED.labels,
			triggers = EXCLUDED.triggers,
			updated_at = NOW()
	`

	revision := flow.Revision
	if revision == 0 {
		revision = 1
	}

	_, err = r.db.ExecContext(ctx, query,
		flow.TenantID,
		flow.Namespace,
		flow.ID,
		revision,
		flow.Disabled,
		labelsJSON,
		triggersJSON,
	)
	if err != nil {
		return persistence.NewFlowError("SaveFlow", flow.Namespace, flow.ID, err)
	}

	return nil
}

// DeleteFlow removes a flow row.
func (r *FlowRepository) DeleteFlow(ctx context.Context, tenantID, namespace, id string) error {
	query := `DELETE FROM flows WHERE tenant_id = $1 AND namespace = $2 AND id = $3`

	result, err := r.db.ExecContext(ctx, query, tenantID, namespace, id)
	if err != nil {
		return persistence.NewFlowError("DeleteFlow", namespace, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewFlowError("DeleteFlow", namespace, id, persistence.ErrFlowNotFound)
	}

	return nil
}

// scanFlow scans a flow from a database row.
func scanFlow(scanner interface{ Scan(dest ...any) error }) (*models.Flow, error) {
	var (
		flow                     models.Flow
		labelsJSON, triggersJSON []byte
	)

	err := scanner.Scan(
		&flow.TenantID,
		&flow.Namespace,
		&flow.ID,
		&flow.Revision,
		&flow.Disabled,
		&labelsJSON,
		&triggersJSON,
	)
	if err != nil {
		return nil, err
	}

	if labelsJSON != nil {
		if err := json.Unmarshal(labelsJSON, &flow.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flow labels: %w", err)
		}
	}

	if triggersJSON != nil {
		if err := json.Unmarshal(triggersJSON, &flow.Triggers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flow triggers: %w", err)
		}
	}

	return &flow, nil
}
