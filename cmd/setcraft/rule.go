package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"setcraft/internal/config"
	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func ruleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage propagation rules",
	}
	cmd.AddCommand(ruleAddCmd())
	cmd.AddCommand(ruleListCmd())
	cmd.AddCommand(ruleImportCmd())
	cmd.AddCommand(ruleDisableCmd())
	return cmd
}

func ruleAddCmd() *cobra.Command {
	var assetType string
	var sourceLevel string
	var targetLevel string
	var mode string
	var priority int
	var conditions []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a propagation rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleAdd(assetType, sourceLevel, targetLevel, mode, priority, conditions)
		},
	}
	cmd.Flags().StringVar(&assetType, "type", "", "Asset type the rule applies to")
	cmd.Flags().StringVar(&sourceLevel, "from", "", "Source level")
	cmd.Flags().StringVar(&targetLevel, "to", "", "Target level")
	cmd.Flags().StringVar(&mode, "mode", "inherit", "Propagation mode (inherit, override, merge, block)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Rule priority; higher wins")
	cmd.Flags().StringArrayVar(&conditions, "condition", nil, "Condition as key=value (repeatable)")
	return cmd
}

func runRuleAdd(assetType, sourceLevel, targetLevel, mode string, priority int, conditions []string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	parsedType, err := store.ParseAssetType(assetType)
	if err != nil {
		return err
	}
	parsedSource, err := hierarchy.ParseLevel(sourceLevel)
	if err != nil {
		return err
	}
	parsedTarget, err := hierarchy.ParseLevel(targetLevel)
	if err != nil {
		return err
	}
	parsedMode, err := store.ParseMode(mode)
	if err != nil {
		return err
	}
	conditionMap, err := parseConditions(conditions)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	rule, err := db.CreateRule(ctx, store.RuleInput{
		ProjectID:   cfg.Project,
		AssetType:   parsedType,
		SourceLevel: parsedSource,
		TargetLevel: parsedTarget,
		Mode:        parsedMode,
		Conditions:  conditionMap,
		Priority:    priority,
		Enabled:     true,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Added rule %s: %s %s->%s %s.\n",
		rule.RuleID, rule.AssetType, rule.SourceLevel, rule.TargetLevel, rule.Mode)
	return nil
}

func ruleListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the project's propagation rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleList()
		},
	}
	return cmd
}

func runRuleList() error {
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

	ruleList, err := db.ListRules(ctx, cfg.Project)
	if err != nil {
		return err
	}
	if len(ruleList) == 0 {
		fmt.Fprintln(os.Stdout, "No rules found.")
		return nil
	}

	rows := make([][]string, 0, len(ruleList))
	for _, rule := range ruleList {
		enabled := "yes"
		if !rule.Enabled {
			enabled = "no"
		}
		rows = append(rows, []string{
			rule.RuleID,
			string(rule.AssetType),
			fmt.Sprintf("%s->%s", rule.SourceLevel, rule.TargetLevel),
			string(rule.Mode),
			strconv.Itoa(rule.Priority),
			enabled,
		})
	}
	fmt.Fprintln(os.Stdout, renderTable(
		[]string{"Rule", "Type", "Transition", "Mode", "Priority", "Enabled"},
		rows,
		5,
	))
	return nil
}

func ruleImportCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import rules from a rule file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleImport(path)
		},
	}
	cmd.Flags().StringVar(&path, "file", rulesPath, "Rule file to import")
	return cmd
}

func runRuleImport(path string) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	inputs, err := config.LoadRuleFile(path, cfg.Project)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	for _, in := range inputs {
		if _, err := db.CreateRule(ctx, in); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "Imported %d rules.\n", len(inputs))
	return nil
}

func ruleDisableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a propagation rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleSetEnabled(args[0], false)
		},
	}
	return cmd
}

func runRuleSetEnabled(ruleID string, enabled bool) error {
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

	if err := db.SetRuleEnabled(ctx, cfg.Project, ruleID, enabled); err != nil {
		return err
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Fprintf(os.Stdout, "Rule %s %s.\n", ruleID, state)
	return nil
}

func parseConditions(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid condition %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
