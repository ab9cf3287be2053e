package main

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"codexvault/internal/config"
	"codexvault/internal/store"
	"codexvault/internal/store/postgres"
	"codexvault/internal/store/sqlite"
)

const configFileName = "codexvault.yaml"

func openDB(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	dsn := cfg.Database.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.New(ctx, dsn)
	}
	return sqlite.New(ctx, dsn)
}

func newLogger(cfg *config.ProjectConfig) (*zap.Logger, error) {
	if cfg.Logging.Mode == config.LogModeDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
