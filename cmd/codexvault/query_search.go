package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
)

func querySearchCmd() *cobra.Command {
	var moduleID string
	var entityType string
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search entities using the full-text index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuerySearch(args[0], moduleID, entityType)
		},
	}
	cmd.Flags().StringVar(&moduleID, "module", "", "Module to filter")
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type to filter")
	return cmd
}

func runQuerySearch(query, moduleID, entityType string) error {
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

	results, err := db.Search(ctx, query, moduleID, entityType)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "No matches found.")
		return nil
	}

	for _, result := range results {
		fmt.Fprintf(os.Stdout, "%s/%s  %s (%s) score=%.2f\n",
			result.ModuleID, result.EntityID, result.Name, result.EntityType, result.Score)
		if result.Snippet != "" {
			fmt.Fprintf(os.Stdout, "    %s\n", result.Snippet)
		}
	}
	return nil
}
