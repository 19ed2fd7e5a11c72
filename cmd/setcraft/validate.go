package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"setcraft/internal/config"
	"setcraft/internal/validate"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run consistency checks across the project tree",
		RunE:  runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	ruleList, err := db.ListEnabledRules(ctx, cfg.Project)
	if err != nil {
		return err
	}

	report, err := validate.Run(ctx, cfg.Project, db, ruleList)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Validated %d nodes, %d distinct assets.\n", report.NodesVisited, len(report.Usage))

	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorIssues))
		printIssues(os.Stdout, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnIssues))
		printIssues(os.Stdout, warnIssues)
	}

	if !report.Consistent {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out *os.File, issues []validate.Issue) {
	for _, issue := range issues {
		var location []string
		if issue.Level != "" {
			location = append(location, string(issue.Level))
		}
		if issue.LevelID != "" {
			location = append(location, fmt.Sprintf("%q", issue.LevelID))
		}
		prefix := ""
		if len(location) > 0 {
			prefix = strings.Join(location, " ") + ": "
		}
		fmt.Fprintf(out, "  - %s%s (%s)\n", prefix, issue.Message, issue.Code)
	}
}
