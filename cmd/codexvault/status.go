package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [module-id]",
		Short: "Show loaded modules, or details for one module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runModuleStatus(args[0])
			}
			return runStatusOverview()
		},
	}
	return cmd
}

func runStatusOverview() error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configFileName)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	modules, err := db.ListModules(ctx)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		fmt.Fprintln(os.Stdout, "No modules loaded.")
		return nil
	}

	for _, module := range modules {
		validated := "never"
		if module.ValidatedAt != nil {
			validated = module.ValidatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(os.Stdout, "%s (%s) version %s status=%s validated=%s\n",
			module.ModuleID, module.SystemID, module.Version, module.Status, validated)
	}
	return nil
}

func runModuleStatus(moduleID string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configFileName)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	status, err := db.GetModuleStatus(ctx, moduleID)
	if err != nil {
		return err
	}
	if status == nil {
		return fmt.Errorf("module %s not found", moduleID)
	}

	fmt.Fprintf(os.Stdout, "Module: %s\n", status.ModuleID)
	fmt.Fprintf(os.Stdout, "Status: %s\n", status.Status)
	fmt.Fprintf(os.Stdout, "Entities: %d\n", status.EntityCount)
	fmt.Fprintf(os.Stdout, "Properties: %d\n", status.PropertyCount)
	if status.ValidatedAt != nil {
		fmt.Fprintf(os.Stdout, "Validated: %s\n", status.ValidatedAt.Format("2006-01-02 15:04:05"))
	}
	if len(status.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(status.Errors))
		for _, item := range status.Errors {
			fmt.Fprintf(os.Stdout, "  - %s\n", item)
		}
	}
	return nil
}
