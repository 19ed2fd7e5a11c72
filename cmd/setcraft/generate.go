package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"setcraft/internal/config"
	"setcraft/internal/generation"
	"setcraft/internal/hierarchy"
)

func generateCmd() *cobra.Command {
	var level string
	var levelID string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Resolve a node and print the generation context as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(level, levelID)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Hierarchy level of the target node")
	cmd.Flags().StringVar(&levelID, "id", "", "Target node identifier")
	return cmd
}

func runGenerate(level, levelID string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	parsedLevel, err := hierarchy.ParseLevel(level)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	rc, err := resolveNode(ctx, cfg, db, parsedLevel, levelID, "")
	if err != nil {
		return err
	}

	payload := generation.Format(rc)
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encoding generation context: %w", err)
	}
	return nil
}
