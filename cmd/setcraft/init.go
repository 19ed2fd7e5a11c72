package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"setcraft/internal/config"
	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

const rulesPath = "rules.yaml"

func initCmd() *cobra.Command {
	var projectID string
	var dsn string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new setcraft project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectID) == "" {
				return fmt.Errorf("--project is required")
			}
			return runInit(projectID, dsn)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project identifier")
	cmd.Flags().StringVar(&dsn, "dsn", "sqlite://setcraft.db", "Database DSN (postgres:// or sqlite://)")
	return cmd
}

func runInit(projectID, dsn string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if _, err := os.Stat(rulesPath); err == nil {
		return fmt.Errorf("%s already exists", rulesPath)
	}

	configContents := fmt.Sprintf("project: %s\nversion: 1\n\ndatabase:\n  dsn: %s\n\nstrict_rules: false\n", projectID, dsn)
	if err := os.WriteFile(configPath, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	rulesContents := `version: 1

# Propagation rules restrict or redirect the default openness: with no rule,
# assets assigned at an ancestor are visible at every descendant.
rules:
  # Example: shots may replace the scene's location wholesale.
  - asset_type: location
    source_level: scene
    target_level: shot
    mode: override
    priority: 10

  # Example: takes layer extra sfx on top of the shot's.
  - asset_type: sfx
    source_level: shot
    target_level: take
    mode: merge
    priority: 10
`
	if err := os.WriteFile(rulesPath, []byte(rulesContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", rulesPath, err)
	}

	ctx := context.Background()
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	if _, err := db.CreateNode(ctx, store.NodeInput{
		ProjectID: projectID,
		Level:     hierarchy.LevelProject,
		LevelID:   projectID,
		Name:      projectID,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Initialized project %q.\n", projectID)
	return nil
}
