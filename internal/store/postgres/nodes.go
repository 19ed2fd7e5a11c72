package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func (c *Client) CreateNode(ctx context.Context, in store.NodeInput) (*store.Node, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	query := `
INSERT INTO nodes (project_id, level, level_id, parent_id, name)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (project_id, level, level_id) DO UPDATE SET
    parent_id = EXCLUDED.parent_id,
    name = EXCLUDED.name
`
	_, err := c.pool.Exec(ctx, query, in.ProjectID, string(in.Level), in.LevelID, in.ParentID, in.Name)
	if err != nil {
		return nil, fmt.Errorf("creating node: %w", err)
	}

	return c.GetNode(ctx, in.ProjectID, in.Level, in.LevelID)
}

func (c *Client) GetNode(ctx context.Context, projectID string, level hierarchy.Level, levelID string) (*store.Node, error) {
	query := `
SELECT project_id, level, level_id, parent_id, name, created_at
FROM nodes
WHERE project_id = $1 AND level = $2 AND level_id = $3
`
	row := c.pool.QueryRow(ctx, query, projectID, string(level), levelID)

	var n store.Node
	var lvl string
	err := row.Scan(&n.ProjectID, &lvl, &n.LevelID, &n.ParentID, &n.Name, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting node: %w", err)
	}
	n.Level = hierarchy.Level(lvl)
	return &n, nil
}

func (c *Client) ListChildren(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]store.Node, error) {
	child, ok := hierarchy.ChildLevel(level)
	if !ok {
		return nil, nil
	}
	query := `
SELECT project_id, level, level_id, parent_id, name, created_at
FROM nodes
WHERE project_id = $1 AND level = $2 AND parent_id = $3
ORDER BY created_at, id
`
	return c.queryNodes(ctx, query, projectID, string(child), levelID)
}

func (c *Client) ListNodes(ctx context.Context, projectID string) ([]store.Node, error) {
	query := `
SELECT project_id, level, level_id, parent_id, name, created_at
FROM nodes
WHERE project_id = $1
ORDER BY created_at, id
`
	return c.queryNodes(ctx, query, projectID)
}

func (c *Client) queryNodes(ctx context.Context, query string, args ...any) ([]store.Node, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	var nodes []store.Node
	for rows.Next() {
		var n store.Node
		var lvl string
		if err := rows.Scan(&n.ProjectID, &lvl, &n.LevelID, &n.ParentID, &n.Name, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		n.Level = hierarchy.Level(lvl)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node rows: %w", err)
	}
	return nodes, nil
}
