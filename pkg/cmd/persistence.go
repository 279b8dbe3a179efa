// Package cmd holds the factories the binaries share: persistence and event
// bus construction from configuration values.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/floworc/floworc/pkg/persistence"
	"github.com/floworc/floworc/pkg/persistence/file"
	"github.com/floworc/floworc/pkg/persistence/memory"
	"github.com/floworc/floworc/pkg/persistence/postgresql"
	redisstore "github.com/floworc/floworc/pkg/persistence/redis"
)

// NewPersistence builds the persistence backend selected by the URL scheme:
// postgres://, memory://, or a file path / file:// directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch provider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"), logger)
	}
}

// NewWindowRepository picks the window store. An empty URL reuses the main
// backend; a redis:// URL puts window state on Redis while flows stay where
// NewPersistence put them.
func NewWindowRepository(ctx context.Context, logger *slog.Logger, windowStoreURL string, fallback persistence.Persistence) (persistence.WindowRepository, error) {
	if windowStoreURL == "" {
		return fallback.WindowRepository(), nil
	}

	if provider(windowStoreURL) != "redis" {
		return nil, fmt.Errorf("unsupported window store url %q", windowStoreURL)
	}

	options, err := goredis.ParseURL(windowStoreURL)
	if err != nil {
		return nil, fmt.Errorf("invalid window store url: %w", err)
	}

	client := goredis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return redisstore.NewWindowRepository(client, logger), nil
}

func provider(url string) string {
	scheme, _, found := strings.Cut(url, "://")
	if !found {
		return "file"
	}

	return scheme
}
