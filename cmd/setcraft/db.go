package main

import (
	"context"
	"fmt"
	"strings"

	"setcraft/internal/config"
	"setcraft/internal/store"
	"setcraft/internal/store/postgres"
	"setcraft/internal/store/sqlite"
)

const configPath = "setcraft.yaml"

func openDB(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	dsn := cfg.Database.DSN
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.New(ctx, dsn)
	}
	return nil, fmt.Errorf("unsupported database dsn scheme: %s", dsn)
}
