package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var projectName string
	var dsn string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new codexvault project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName, dsn)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&dsn, "dsn", "sqlite://./codexvault.db", "Database DSN")
	return cmd
}

func runInit(projectName, dsn string) error {
	if _, err := os.Stat(configFileName); err == nil {
		return fmt.Errorf("%s already exists", configFileName)
	}

	contents := fmt.Sprintf(`project: %s
version: 1

database:
  dsn: %s

validation:
  max_concurrent_jobs: 3
  max_pending_jobs: 100
  interval_minutes: 5
  retention_minutes: 60
  auto_revalidate: true
  auto_revalidate_after_hours: 24

logging:
  mode: production
`, projectName, dsn)

	if err := os.WriteFile(configFileName, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configFileName, err)
	}

	fmt.Fprintf(os.Stdout, "Wrote %s.\n", configFileName)
	return nil
}
