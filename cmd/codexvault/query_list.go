package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
)

func queryListCmd() *cobra.Command {
	var entityType string
	cmd := &cobra.Command{
		Use:   "list <module-id>",
		Short: "List entities in a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryList(args[0], entityType)
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Entity type to filter")
	return cmd
}

func runQueryList(moduleID, entityType string) error {
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

	entities, err := db.ListEntities(ctx, moduleID, entityType)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Fprintln(os.Stdout, "No entities found.")
		return nil
	}

	for _, entity := range entities {
		line := fmt.Sprintf("%s  %s (%s)", entity.EntityID, entity.Name, entity.EntityType)
		if len(entity.Tags) > 0 {
			line += " [" + strings.Join(entity.Tags, ", ") + "]"
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}
