package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"setcraft/internal/config"
	"setcraft/internal/hierarchy"
	"setcraft/internal/resolve"
	"setcraft/internal/rules"
	"setcraft/internal/store"
)

func resolveCmd() *cobra.Command {
	var level string
	var levelID string
	var assetType string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the effective assets at a hierarchy node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(level, levelID, assetType)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Hierarchy level of the target node")
	cmd.Flags().StringVar(&levelID, "id", "", "Target node identifier")
	cmd.Flags().StringVar(&assetType, "type", "", "Restrict resolution to one asset type")
	return cmd
}

func runResolve(level, levelID, assetType string) error {
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

	rc, err := resolveNode(ctx, cfg, db, parsedLevel, levelID, assetType)
	if err != nil {
		return err
	}

	if rc.TotalAssets == 0 {
		fmt.Fprintf(os.Stdout, "No assets resolve at %s %q.\n", rc.Level, rc.LevelID)
		return nil
	}

	var rows [][]string
	for _, at := range store.AssetTypes() {
		for _, entry := range rc.ResolvedAssets[at] {
			source := fmt.Sprintf("%s %s", entry.SourceLevel, entry.SourceID)
			if entry.SourceLevel == rc.Level && entry.SourceID == rc.LevelID {
				source = "local"
			}
			overridden := ""
			if entry.IsOverridden {
				overridden = "yes"
			}
			override := ""
			if len(entry.OverrideData) > 0 {
				data, err := json.Marshal(entry.OverrideData)
				if err != nil {
					return fmt.Errorf("marshaling override data: %w", err)
				}
				override = string(data)
			}
			rows = append(rows, []string{string(at), entry.AssetID, source, overridden, override})
		}
	}

	fmt.Fprintf(os.Stdout, "%d assets at %s %q:\n", rc.TotalAssets, rc.Level, rc.LevelID)
	fmt.Fprintln(os.Stdout, renderTable(
		[]string{"Type", "Asset", "Source", "Overridden", "Override data"},
		rows,
	))
	return nil
}

func resolveNode(ctx context.Context, cfg *config.ProjectConfig, db store.Store, level hierarchy.Level, levelID, assetType string) (*resolve.ResolvedContext, error) {
	ruleList, err := db.ListEnabledRules(ctx, cfg.Project)
	if err != nil {
		return nil, err
	}
	snapshot := rules.NewSnapshot(ruleList, rules.WithStrict(cfg.StrictRules))
	resolver := resolve.New(db, snapshot)

	if assetType != "" {
		parsedType, err := store.ParseAssetType(assetType)
		if err != nil {
			return nil, err
		}
		return resolver.Resolve(ctx, cfg.Project, level, levelID, parsedType)
	}
	return resolver.Resolve(ctx, cfg.Project, level, levelID)
}
