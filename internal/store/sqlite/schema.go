package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS nodes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		level      TEXT NOT NULL,
		level_id   TEXT NOT NULL,
		parent_id  TEXT DEFAULT '',
		name       TEXT DEFAULT '',
		created_at TEXT NOT NULL,
		CONSTRAINT uq_node UNIQUE (project_id, level, level_id)
	);

	CREATE TABLE IF NOT EXISTS asset_refs (
		id            TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL,
		asset_id      TEXT NOT NULL,
		asset_type    TEXT NOT NULL,
		level         TEXT NOT NULL,
		level_id      TEXT NOT NULL,
		override_data TEXT DEFAULT '{}',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		CONSTRAINT uq_asset_ref UNIQUE (project_id, level, level_id, asset_id, asset_type)
	);

	CREATE TABLE IF NOT EXISTS propagation_rules (
		rule_id      TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL,
		asset_type   TEXT NOT NULL,
		source_level TEXT NOT NULL,
		target_level TEXT NOT NULL,
		mode         TEXT NOT NULL,
		conditions   TEXT DEFAULT '{}',
		priority     INTEGER DEFAULT 0,
		enabled      INTEGER DEFAULT 1,
		created_at   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes (project_id, parent_id);
	CREATE INDEX IF NOT EXISTS idx_asset_refs_node ON asset_refs (project_id, level, level_id);
	CREATE INDEX IF NOT EXISTS idx_asset_refs_asset ON asset_refs (project_id, asset_id);
	CREATE INDEX IF NOT EXISTS idx_rules_project ON propagation_rules (project_id, enabled);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}
