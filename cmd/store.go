package cmd

import (
	"context"
	"fmt"

	"github.com/lumeo/lumeo/internal/clustering"
	"github.com/lumeo/lumeo/internal/config"
	"github.com/lumeo/lumeo/internal/database"
	"github.com/lumeo/lumeo/internal/database/memory"
	"github.com/lumeo/lumeo/internal/database/postgres"
	"github.com/lumeo/lumeo/internal/registry"
)

// openStore connects to PostgreSQL when DATABASE_URL is set and falls back
// to the in-memory store otherwise. The returned closer is always safe to
// call.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, func(), error) {
	if cfg.Database.URL == "" {
		fmt.Println("DATABASE_URL not set, using in-memory store (state is lost on exit)")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return postgres.NewStore(pool), func() { pool.Close() }, nil
}

// newEngine builds the clustering engine from config.
func newEngine(cfg *config.Config, store database.Store) *registry.Engine {
	return registry.New(store, cfg.Faces.EmbeddingDim, clustering.Options{
		Eps:        cfg.Tuning.Clustering.Eps,
		MinSamples: cfg.Tuning.Clustering.MinSamples,
	})
}
