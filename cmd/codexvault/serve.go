package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
	"codexvault/internal/mcp"
	"codexvault/internal/scheduler"
	"codexvault/internal/validate"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio with background validation",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configFileName)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	sched := scheduler.New(db, validate.New(db, log), schedulerConfig(cfg), log)
	sched.Start()
	defer sched.Stop()

	server := mcp.NewServer(db, sched, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}

func schedulerConfig(cfg *config.ProjectConfig) scheduler.Config {
	autoRevalidate := true
	if cfg.Validation.AutoRevalidate != nil {
		autoRevalidate = *cfg.Validation.AutoRevalidate
	}
	return scheduler.Config{
		MaxConcurrentJobs:   cfg.Validation.MaxConcurrentJobs,
		MaxPendingJobs:      cfg.Validation.MaxPendingJobs,
		Interval:            time.Duration(cfg.Validation.IntervalMinutes) * time.Minute,
		Retention:           time.Duration(cfg.Validation.RetentionMinutes) * time.Minute,
		AutoRevalidate:      autoRevalidate,
		AutoRevalidateAfter: time.Duration(cfg.Validation.AutoRevalidateAfterHours) * time.Hour,
	}
}
