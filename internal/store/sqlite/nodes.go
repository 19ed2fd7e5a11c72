package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func (c *Client) CreateNode(ctx context.Context, in store.NodeInput) (*store.Node, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `
	INSERT INTO nodes (project_id, level, level_id, parent_id, name, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (project_id, level, level_id) DO UPDATE SET
		parent_id = excluded.parent_id,
		name = excluded.name
	`
	_, err := c.db.ExecContext(ctx, query,
		in.ProjectID, string(in.Level), in.LevelID, in.ParentID, in.Name, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("creating node: %w", err)
	}

	return c.GetNode(ctx, in.ProjectID, in.Level, in.LevelID)
}

func (c *Client) GetNode(ctx context.Context, projectID string, level hierarchy.Level, levelID string) (*store.Node, error) {
	query := `
	SELECT project_id, level, level_id, parent_id, name, created_at
	FROM nodes
	WHERE project_id = ? AND level = ? AND level_id = ?
	`
	row := c.db.QueryRowContext(ctx, query, projectID, string(level), levelID)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting node: %w", err)
	}
	return node, nil
}

func (c *Client) ListChildren(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]store.Node, error) {
	child, ok := hierarchy.ChildLevel(level)
	if !ok {
		return nil, nil
	}
	query := `
	SELECT project_id, level, level_id, parent_id, name, created_at
	FROM nodes
	WHERE project_id = ? AND level = ? AND parent_id = ?
	ORDER BY created_at, id
	`
	return c.queryNodes(ctx, query, projectID, string(child), levelID)
}

func (c *Client) ListNodes(ctx context.Context, projectID string) ([]store.Node, error) {
	query := `
	SELECT project_id, level, level_id, parent_id, name, created_at
	FROM nodes
	WHERE project_id = ?
	ORDER BY created_at, id
	`
	return c.queryNodes(ctx, query, projectID)
}

func (c *Client) queryNodes(ctx context.Context, query string, args ...any) ([]store.Node, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	var nodes []store.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node rows: %w", err)
	}
	return nodes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*store.Node, error) {
	var n store.Node
	var level, createdAt string
	if err := row.Scan(&n.ProjectID, &level, &n.LevelID, &n.ParentID, &n.Name, &createdAt); err != nil {
		return nil, err
	}
	n.Level = hierarchy.Level(level)
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	n.CreatedAt = created
	return &n, nil
}
