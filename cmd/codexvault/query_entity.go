package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codexvault/internal/config"
	"codexvault/internal/props"
)

func queryEntityCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "entity <module-id> <entity-id>",
		Short: "Display an entity with its payload rebuilt from storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryEntity(args[0], args[1], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the rebuilt payload as JSON")
	return cmd
}

func runQueryEntity(moduleID, entityID string, asJSON bool) error {
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

	entity, err := db.GetEntity(ctx, moduleID, entityID)
	if err != nil {
		return err
	}
	if entity == nil {
		fmt.Fprintf(os.Stdout, "No entity %q in module %q.\n", entityID, moduleID)
		return nil
	}

	attrs, err := db.GetEntityAttributes(ctx, moduleID, entityID)
	if err != nil {
		return err
	}
	data, err := props.Reconstruct(attrs)
	if err != nil {
		return err
	}

	if asJSON {
		payload := map[string]any{
			"entityId":   entity.EntityID,
			"entityType": entity.EntityType,
			"name":       entity.Name,
			"tags":       entity.Tags,
			"data":       data,
		}
		encoded, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(encoded))
		return nil
	}

	fmt.Fprintf(os.Stdout, "Entity: %s\n", entity.EntityID)
	fmt.Fprintf(os.Stdout, "Type: %s\n", entity.EntityType)
	fmt.Fprintf(os.Stdout, "Name: %s\n", entity.Name)
	if entity.Description != "" {
		fmt.Fprintf(os.Stdout, "Description: %s\n", entity.Description)
	}
	if len(entity.Tags) > 0 {
		fmt.Fprintf(os.Stdout, "Tags: %s\n", strings.Join(entity.Tags, ", "))
	}

	if len(attrs) == 0 {
		return nil
	}
	fmt.Fprintln(os.Stdout, "Properties:")
	for _, attr := range attrs {
		fmt.Fprintf(os.Stdout, "  %s (%s): %s\n", attr.Key, attr.Type, formatAttributeValue(attr))
	}
	return nil
}

func formatAttributeValue(attr props.Attribute) string {
	switch {
	case attr.ValueString != nil:
		return *attr.ValueString
	case attr.ValueNumber != nil:
		return fmt.Sprintf("%g", *attr.ValueNumber)
	case attr.ValueInteger != nil:
		return fmt.Sprintf("%d", *attr.ValueInteger)
	case attr.ValueBoolean != nil:
		return fmt.Sprintf("%t", *attr.ValueBoolean)
	case attr.ValueJSON != nil:
		return *attr.ValueJSON
	case attr.ValueReference != nil:
		return "-> " + *attr.ValueReference
	default:
		return "null"
	}
}
