package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
	"codexvault/internal/loader"
)

func loadCmd() *cobra.Command {
	var validateAfter bool
	var skipInvalid bool
	var authorID string
	cmd := &cobra.Command{
		Use:   "load <path>",
		Short: "Load a content module directory into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(args[0], loader.Options{
				Validate:    validateAfter,
				SkipInvalid: skipInvalid,
				AuthorID:    authorID,
			})
		},
	}
	cmd.Flags().BoolVar(&validateAfter, "validate", false, "Run validation immediately after loading")
	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Load valid entities even when some fail")
	cmd.Flags().StringVar(&authorID, "author", "", "Author id to record on the module")
	return cmd
}

func runLoad(path string, opts loader.Options) error {
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

	module, err := loader.New(db, log).LoadModule(ctx, path, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Loaded module %s (%s) version %s\n", module.ModuleID, module.Name, module.Version)
	fmt.Fprintf(os.Stdout, "  Status: %s\n", module.Status)
	if len(module.LoadErrors) > 0 {
		fmt.Fprintf(os.Stdout, "  Skipped entities (%d):\n", len(module.LoadErrors))
		for _, item := range module.LoadErrors {
			fmt.Fprintf(os.Stdout, "    - %s\n", item)
		}
	}
	return nil
}
