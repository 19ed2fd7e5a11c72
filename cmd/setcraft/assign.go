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

func assignCmd() *cobra.Command {
	var level string
	var levelID string
	var assetID string
	var assetType string
	var overrides []string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign an asset to a hierarchy node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssign(level, levelID, assetID, assetType, overrides)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Hierarchy level of the node")
	cmd.Flags().StringVar(&levelID, "id", "", "Node identifier")
	cmd.Flags().StringVar(&assetID, "asset", "", "Asset identifier")
	cmd.Flags().StringVar(&assetType, "type", "", "Asset type")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "Override parameter as key=value (repeatable)")
	return cmd
}

func runAssign(level, levelID, assetID, assetType string, overrides []string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	parsedLevel, err := hierarchy.ParseLevel(level)
	if err != nil {
		return err
	}
	parsedType, err := store.ParseAssetType(assetType)
	if err != nil {
		return err
	}
	overrideData, err := parseOverrides(overrides)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	node, err := db.GetNode(ctx, cfg.Project, parsedLevel, levelID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("node %s %q does not exist", parsedLevel, levelID)
	}

	ref, err := db.UpsertAssetRef(ctx, store.AssetReferenceInput{
		ProjectID:    cfg.Project,
		AssetID:      assetID,
		AssetType:    parsedType,
		Level:        parsedLevel,
		LevelID:      levelID,
		OverrideData: overrideData,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Assigned %s %q to %s %q.\n", ref.AssetType, ref.AssetID, ref.Level, ref.LevelID)
	return nil
}

func parseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid override %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
