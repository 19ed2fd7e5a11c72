package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"setcraft/internal/config"
	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage hierarchy nodes",
	}
	cmd.AddCommand(nodeAddCmd())
	cmd.AddCommand(nodeListCmd())
	return cmd
}

func nodeAddCmd() *cobra.Command {
	var level string
	var levelID string
	var parentID string
	var name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a node to the hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeAdd(level, levelID, parentID, name)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Hierarchy level (act, chapter, scene, shot, take)")
	cmd.Flags().StringVar(&levelID, "id", "", "Node identifier")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent node identifier")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func runNodeAdd(level, levelID, parentID, name string) error {
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

	if parentLevel, ok := hierarchy.ParentLevel(parsedLevel); ok {
		parent, err := db.GetNode(ctx, cfg.Project, parentLevel, parentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("parent %s %q does not exist", parentLevel, parentID)
		}
	}

	node, err := db.CreateNode(ctx, store.NodeInput{
		ProjectID: cfg.Project,
		Level:     parsedLevel,
		LevelID:   levelID,
		ParentID:  parentID,
		Name:      name,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Added %s %q under %q.\n", node.Level, node.LevelID, node.ParentID)
	return nil
}

func nodeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the project's hierarchy nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeList()
		},
	}
	return cmd
}

func runNodeList() error {
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

	nodes, err := db.ListNodes(ctx, cfg.Project)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		fmt.Fprintln(os.Stdout, "No nodes found.")
		return nil
	}

	rows := make([][]string, 0, len(nodes))
	for _, node := range nodes {
		rows = append(rows, []string{string(node.Level), node.LevelID, node.ParentID, node.Name})
	}
	fmt.Fprintln(os.Stdout, renderTable(
		[]string{"Level", "ID", "Parent", "Name"},
		rows,
	))
	return nil
}
