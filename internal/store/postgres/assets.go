package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func (c *Client) UpsertAssetRef(ctx context.Context, in store.AssetReferenceInput) (*store.AssetReference, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	overrideJSON, err := json.Marshal(orEmptyMap(in.OverrideData))
	if err != nil {
		return nil, fmt.Errorf("marshaling override data: %w", err)
	}

	query := `
INSERT INTO asset_refs (id, project_id, asset_id, asset_type, level, level_id, override_data)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (project_id, level, level_id, asset_id, asset_type) DO UPDATE SET
    override_data = EXCLUDED.override_data,
    updated_at = now()
`
	_, err = c.pool.Exec(ctx, query,
		uuid.NewString(), in.ProjectID, in.AssetID, string(in.AssetType),
		string(in.Level), in.LevelID, overrideJSON)
	if err != nil {
		return nil, fmt.Errorf("upserting asset reference: %w", err)
	}

	return c.getAssetRef(ctx, in)
}

func (c *Client) getAssetRef(ctx context.Context, in store.AssetReferenceInput) (*store.AssetReference, error) {
	query := `
SELECT id, project_id, asset_id, asset_type, level, level_id, override_data, created_at, updated_at
FROM asset_refs
WHERE project_id = $1 AND level = $2 AND level_id = $3 AND asset_id = $4 AND asset_type = $5
`
	row := c.pool.QueryRow(ctx, query,
		in.ProjectID, string(in.Level), in.LevelID, in.AssetID, string(in.AssetType))
	ref, err := scanAssetRef(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("asset reference vanished after upsert")
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset reference: %w", err)
	}
	return ref, nil
}

func (c *Client) ListAssetRefs(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]store.AssetReference, error) {
	query := `
SELECT id, project_id, asset_id, asset_type, level, level_id, override_data, created_at, updated_at
FROM asset_refs
WHERE project_id = $1 AND level = $2 AND level_id = $3
ORDER BY created_at, id
`
	return c.queryAssetRefs(ctx, query, projectID, string(level), levelID)
}

func (c *Client) ListProjectAssetRefs(ctx context.Context, projectID string) ([]store.AssetReference, error) {
	query := `
SELECT id, project_id, asset_id, asset_type, level, level_id, override_data, created_at, updated_at
FROM asset_refs
WHERE project_id = $1
ORDER BY created_at, id
`
	return c.queryAssetRefs(ctx, query, projectID)
}

func (c *Client) DeleteAssetRef(ctx context.Context, projectID string, level hierarchy.Level, levelID, assetID string, assetType store.AssetType) error {
	query := `
DELETE FROM asset_refs
WHERE project_id = $1 AND level = $2 AND level_id = $3 AND asset_id = $4 AND asset_type = $5
`
	tag, err := c.pool.Exec(ctx, query, projectID, string(level), levelID, assetID, string(assetType))
	if err != nil {
		return fmt.Errorf("deleting asset reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset reference not found: %s %q %s/%s", level, levelID, assetType, assetID)
	}
	return nil
}

func (c *Client) queryAssetRefs(ctx context.Context, query string, args ...any) ([]store.AssetReference, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing asset references: %w", err)
	}
	defer rows.Close()

	var refs []store.AssetReference
	for rows.Next() {
		ref, err := scanAssetRef(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning asset reference: %w", err)
		}
		refs = append(refs, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating asset reference rows: %w", err)
	}
	return refs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssetRef(row rowScanner) (*store.AssetReference, error) {
	var ref store.AssetReference
	var assetType, level string
	var overrideBytes []byte
	if err := row.Scan(&ref.ID, &ref.ProjectID, &ref.AssetID, &assetType,
		&level, &ref.LevelID, &overrideBytes, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
		return nil, err
	}

	ref.AssetType = store.AssetType(assetType)
	ref.Level = hierarchy.Level(level)
	ref.SourceLevel = ref.Level
	ref.SourceID = ref.LevelID

	if len(overrideBytes) > 0 {
		override := make(map[string]any)
		if err := json.Unmarshal(overrideBytes, &override); err != nil {
			return nil, fmt.Errorf("unmarshaling override data: %w", err)
		}
		if len(override) > 0 {
			ref.OverrideData = override
			ref.IsOverridden = true
		}
	}
	return &ref, nil
}

func orEmptyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}
