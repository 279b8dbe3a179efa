package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
)

// WindowRepository handles multiple-condition window persistence in
// PostgreSQL. The per-key atomicity the trigger engine requires comes from
// single-statement upserts: results are merged inside the database with a
// jsonb concatenation, so concurrent partial updates for the same key never
// lose entries.
type WindowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWindowRepository creates a new window repository.
func NewWindowRepository(db *sql.DB, logger *slog.Logger) *WindowRepository {
	return &WindowRepository{db: db, logger: logger}
}

// GetOrCreate fetches the window row for the derived key, inserting an empty
// one when missing. The no-op conflict update makes RETURNING yield the
// existing row instead of nothing.
func (r *WindowRepository) GetOrCreate(ctx context.Context, flow *models.Flow, condition *models.MultipleCondition, correlationKey string, now time.Time) (*models.MultipleConditionWindow, error) {
	window, err := models.NewMultipleConditionWindow(flow, condition, correlationKey, now)
	if err != nil {
		return nil, fmt.Errorf("failed to compute window bounds: %w", err)
	}

	query := `
		INSERT INTO multiple_condition_windows (
			tenant_id, namespace, flow_id, condition_id, correlation_key,
			results, window_start, window_end, created_at
		)
		VALUES ($1, $2, $3, $4, $5, '{}', $6, $7, $8)
		ON CONFLICT (tenant_id, namespace, flow_id, condition_id, correlation_key) DO UPDATE SET
			results = multiple_condition_windows.results
		RETURNING results, window_start, window_end, created_at
	`

	row := r.db.QueryRowContext(ctx, query,
		window.TenantID,
		window.Namespace,
		window.FlowID,
		window.ConditionID,
		window.CorrelationKey,
		window.WindowStart,
		window.WindowEnd,
		window.CreatedAt,
	)

	err = scanWindowState(row, window)
	if err != nil {
		return nil, persistence.NewWindowError("GetOrCreate", window.Key(), err)
	}

	return window, nil
}

// Save merge-upserts each window and returns the post-merge rows. The jsonb
// concatenation runs atomically per row inside the statement.
func (r *WindowRepository) Save(ctx context.Context, windows []*models.MultipleConditionWindow) ([]*models.MultipleConditionWindow, error) {
	query := `
		INSERT INTO multiple_condition_windows (
			tenant_id, namespace, flow_id, condition_id, correlation_key,
			results, window_start, window_end, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, namespace, flow_id, condition_id, correlation_key) DO UPDATE SET
			results = multiple_condition_windows.results || EXCLUDED.results
		RETURNING results, window_start, window_end, created_at
	`

	saved := make([]*models.MultipleConditionWindow, 0, len(windows))

	for _, window := range windows {
		resultsJSON, err := json.Marshal(window.Results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal window results: %w", err)
		}

		merged := *window

		row := r.db.QueryRowContext(ctx, query,
			window.TenantID,
			window.Namespace,
			window.FlowID,
			window.ConditionID,
			window.CorrelationKey,
			resultsJSON,
			window.WindowStart,
			window.WindowEnd,
			window.CreatedAt,
		)

		err = scanWindowState(row, &merged)
		if err != nil {
			return nil, persistence.NewWindowError("Save", window.Key(), err)
		}

		saved = append(saved, &merged)
	}

	return saved, nil
}

// Delete purges a window row.
func (r *WindowRepository) Delete(ctx context.Context, window *models.MultipleConditionWindow) error {
	query := `
		DELETE FROM multiple_condition_windows
		WHERE tenant_id = $1 AND namespace = $2 AND flow_id = $3 AND condition_id = $4 AND correlation_key = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		window.TenantID,
		window.Namespace,
		window.FlowID,
		window.ConditionID,
		window.CorrelationKey,
	)
	if err != nil {
		return persistence.NewWindowError("Delete", window.Key(), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		r.logger.WarnContext(ctx, "window not found for deletion", "key", window.Key())
	}

	return nil
}

// Expired returns every window of the tenant whose validity interval has
// elapsed at now.
func (r *WindowRepository) Expired(ctx context.Context, tenantID string, now time.Time) ([]*models.MultipleConditionWindow, error) {
	query := `
		SELECT
			tenant_id
		  , namespace
		  , flow_id
		  , condition_id
		  , correlation_key
		  , results
		  , window_start
		  , window_end
		  , created_at
		FROM multiple_condition_windows
		WHERE tenant_id = $1 AND window_end <= $2
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query expired windows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	windows := make([]*models.MultipleConditionWindow, 0)

	for rows.Next() {
		var (
			window      models.MultipleConditionWindow
			resultsJSON []byte
		)

		err := rows.Scan(
			&window.TenantID,
			&window.Namespace,
			&window.FlowID,
			&window.ConditionID,
			&window.CorrelationKey,
			&resultsJSON,
			&window.WindowStart,
			&window.WindowEnd,
			&window.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}

		window.Results = make(map[string]bool)
		if resultsJSON != nil {
			if err := json.Unmarshal(resultsJSON, &window.Results); err != nil {
				return nil, fmt.Errorf("failed to unmarshal window results: %w", err)
			}
		}

		windows = append(windows, &window)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating expired windows: %w", err)
	}

	return windows, nil
}

// scanWindowState fills the mutable window state from an upsert RETURNING
// row.
func scanWindowState(row *sql.Row, window *models.MultipleConditionWindow) error {
	var resultsJSON []byte

	err := row.Scan(&resultsJSON, &window.WindowStart, &window.WindowEnd, &window.CreatedAt)
	if err != nil {
		return err
	}

	window.Results = make(map[string]bool)
	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &window.Results); err != nil {
			return fmt.Errorf("failed to unmarshal window results: %w", err)
		}
	}

	return nil
}
