// Package redis provides a Redis-backed multiple-condition window store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/floworc/floworc/pkg/models"
	"github.com/floworc/floworc/pkg/persistence"
)

const (
	windowKeyPrefix   = "floworc:windows:"
	tenantIndexPrefix = "floworc:windows:tenant:"

	// maxMergeAttempts bounds the optimistic retry loop when concurrent
	// writers race on the same window key.
	maxMergeAttempts = 10
)

// WindowRepository implements the window store on Redis. Per-key atomicity
// comes from optimistic WATCH transactions: a concurrent write to the same
// key aborts the transaction and the merge is retried on the fresh state.
type WindowRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
}

var _ persistence.WindowRepository = (*WindowRepository)(nil)

// NewWindowRepository creates a window repository on an existing client.
func NewWindowRepository(client redis.UniversalClient, logger *slog.Logger) *WindowRepository {
	return &WindowRepository{
		client: client,
		logger: logger.With("module", "redis_window_repository"),
	}
}

// GetOrCreate fetches the window for the derived key, creating an empty one
// when none exists.
func (r *WindowRepository) GetOrCreate(ctx context.Context, flow *models.Flow, condition *models.MultipleCondition, correlationKey string, now time.Time) (*models.MultipleConditionWindow, error) {
	window, err := models.NewMultipleConditionWindow(flow, condition, correlationKey, now)
	if err != nil {
		return nil, fmt.Errorf("failed to compute window bounds: %w", err)
	}

	payload, err := json.Marshal(window)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal window: %w", err)
	}

	key := windowKeyPrefix + window.Key()

	created, err := r.client.SetNX(ctx, key, payload, 0).Result()
	if err != nil {
		return nil, persistence.NewWindowError("GetOrCreate", window.Key(), err)
	}

	if created {
		err = r.client.SAdd(ctx, tenantIndexPrefix+window.TenantID, key).Err()
		if err != nil {
			return nil, persistence.NewWindowError("GetOrCreate", window.Key(), err)
		}

		return window, nil
	}

	return r.load(ctx, key)
}

// Save merges each window's results into the persisted row and returns the
// post-merge state.
func (r *WindowRepository) Save(ctx context.Context, windows []*models.MultipleConditionWindow) ([]*models.MultipleConditionWindow, error) {
	saved := make([]*models.MultipleConditionWindow, 0, len(windows))

	for _, window := range windows {
		merged, err := r.merge(ctx, window)
		if err != nil {
			return nil, persistence.NewWindowError("Save", window.Key(), err)
		}

		saved = append(saved, merged)
	}

	return saved, nil
}

// Delete purges a window row and its tenant index entry.
func (r *WindowRepository) Delete(ctx context.Context, window *models.MultipleConditionWindow) error {
	key := windowKeyPrefix + window.Key()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, tenantIndexPrefix+window.TenantID, key)

		return nil
	})
	if err != nil {
		return persistence.NewWindowError("Delete", window.Key(), err)
	}

	return nil
}

// Expired returns every window of the tenant whose validity interval has
// elapsed at now. Dangling index entries are pruned along the way.
func (r *WindowRepository) Expired(ctx context.Context, tenantID string, now time.Time) ([]*models.MultipleConditionWindow, error) {
	index := tenantIndexPrefix + tenantID

	keys, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant windows: %w", err)
	}

	expired := make([]*models.MultipleConditionWindow, 0)

	for _, key := range keys {
		window, err := r.load(ctx, key)
		if errors.Is(err, persistence.ErrWindowNotFound) {
			if err := r.client.SRem(ctx, index, key).Err(); err != nil {
				r.logger.WarnContext(ctx, "failed to prune dangling window index entry", "key", key, "error", err)
			}

			continue
		}

		if err != nil {
			return nil, err
		}

		if window.Expired(now) {
			expired = append(expired, window)
		}
	}

	return expired, nil
}

// merge runs one optimistic read-merge-write cycle per attempt until the
// transaction commits without interference.
func (r *WindowRepository) merge(ctx context.Context, window *models.MultipleConditionWindow) (*models.MultipleConditionWindow, error) {
	key := windowKeyPrefix + window.Key()

	var merged *models.MultipleConditionWindow

	transaction := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()

		switch {
		case errors.Is(err, redis.Nil):
			merged = window.Merge(nil)
		case err != nil:
			return err
		default:
			var existing models.MultipleConditionWindow
			if err := json.Unmarshal(payload, &existing); err != nil {
				return fmt.Errorf("failed to unmarshal window: %w", err)
			}

			merged = existing.Merge(window.Results)
		}

		out, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to marshal window: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			pipe.SAdd(ctx, tenantIndexPrefix+window.TenantID, key)

			return nil
		})

		return err
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		err := r.client.Watch(ctx, transaction, key)
		if err == nil {
			return merged, nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("window merge for %s did not converge after %d attempts", window.Key(), maxMergeAttempts)
}

func (r *WindowRepository) load(ctx context.Context, key string) (*models.MultipleConditionWindow, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrWindowNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load window: %w", err)
	}

	var window models.MultipleConditionWindow
	if err := json.Unmarshal(payload, &window); err != nil {
		return nil, fmt.Errorf("failed to unmarshal window: %w", err)
	}

	if window.Results == nil {
		window.Results = make(map[string]bool)
	}

	return &window, nil
}
