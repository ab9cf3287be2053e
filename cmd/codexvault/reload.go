package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
	"codexvault/internal/loader"
)

func reloadCmd() *cobra.Command {
	var force bool
	var validateAfter bool
	var skipInvalid bool
	cmd := &cobra.Command{
		Use:   "reload <module-id> <path>",
		Short: "Replace a module's content from its source directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReload(args[0], args[1], force, loader.Options{
				Validate:    validateAfter,
				SkipInvalid: skipInvalid,
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reload even when the source is unchanged")
	cmd.Flags().BoolVar(&validateAfter, "validate", false, "Run validation immediately after reloading")
	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Load valid entities even when some fail")
	return cmd
}

func runReload(moduleID, path string, force bool, opts loader.Options) error {
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

	module, err := loader.New(db, log).ReloadModule(ctx, moduleID, path, force, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Module %s is at version %s (%s)\n", module.ModuleID, module.Version, module.Status)
	return nil
}
