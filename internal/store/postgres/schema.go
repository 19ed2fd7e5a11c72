package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS nodes (
    id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    project_id TEXT NOT NULL,
    level      TEXT NOT NULL,
    level_id   TEXT NOT NULL,
    parent_id  TEXT DEFAULT '',
    name       TEXT DEFAULT '',
    created_at TIMESTAMPTZ DEFAULT now(),
    CONSTRAINT uq_node UNIQUE (project_id, level, level_id)
);

CREATE TABLE IF NOT EXISTS asset_refs (
    id            TEXT PRIMARY KEY,
    project_id    TEXT NOT NULL,
    asset_id      TEXT NOT NULL,
    asset_type    TEXT NOT NULL,
    level         TEXT NOT NULL,
    level_id      TEXT NOT NULL,
    override_data JSONB DEFAULT '{}',
    created_at    TIMESTAMPTZ DEFAULT now(),
    updated_at    TIMESTAMPTZ DEFAULT now(),
    CONSTRAINT uq_asset_ref UNIQUE (project_id, level, level_id, asset_id, asset_type)
);

CREATE TABLE IF NOT EXISTS propagation_rules (
    rule_id      TEXT PRIMARY KEY,
    project_id   TEXT NOT NULL,
    asset_type   TEXT NOT NULL,
    source_level TEXT NOT NULL,
    target_level TEXT NOT NULL,
    mode         TEXT NOT NULL,
    conditions   JSONB DEFAULT '{}',
    priority     INTEGER DEFAULT 0,
    enabled      BOOLEAN DEFAULT TRUE,
    created_at   TIMESTAMPTZ DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes (project_id, parent_id);
CREATE INDEX IF NOT EXISTS idx_asset_refs_node ON asset_refs (project_id, level, level_id);
CREATE INDEX IF NOT EXISTS idx_asset_refs_asset ON asset_refs (project_id, asset_id);
CREATE INDEX IF NOT EXISTS idx_rules_project ON propagation_rules (project_id, enabled);
`

	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("executing DDL: %w", err)
	}
	return nil
}
