package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
	"codexvault/internal/loader"
)

func unloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unload <module-id>",
		Short: "Remove a module and all of its entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnload(args[0])
		},
	}
	return cmd
}

func runUnload(moduleID string) error {
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

	if err := loader.New(db, log).UnloadModule(ctx, moduleID); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Unloaded module %s.\n", moduleID)
	return nil
}
