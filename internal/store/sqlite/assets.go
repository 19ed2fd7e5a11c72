package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func (c *Client) UpsertAssetRef(ctx context.Context, in store.AssetReferenceInput) (*store.AssetReference, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	overrideJSON, err := marshalMap(in.OverrideData)
	if err != nil {
		return nil, err
	}

	now := formatTime(time.Now().UTC())
	query := `
	INSERT INTO asset_refs (id, project_id, asset_id, asset_type, level, level_id, override_data, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (project_id, level, level_id, asset_id, asset_type) DO UPDATE SET
		override_data = excluded.override_data,
		updated_at = excluded.updated_at
	`
	_, err = c.db.ExecContext(ctx, query,
		uuid.NewString(), in.ProjectID, in.AssetID, string(in.AssetType),
		string(in.Level), in.LevelID, string(overrideJSON), now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting asset reference: %w", err)
	}

	return c.getAssetRef(ctx, in)
}

func (c *Client) getAssetRef(ctx context.Context, in store.AssetReferenceInput) (*store.AssetReference, error) {
	query := `
	SELECT id, project_id, asset_id, asset_type, level, level_id, override_data, created_at, updated_at
	FROM asset_refs
	WHERE project_id = ? AND level = ? AND level_id = ? AND asset_id = ? AND asset_type = ?
	`
	row := c.db.QueryRowContext(ctx, query,
		in.ProjectID, string(in.Level), in.LevelID, in.AssetID, string(in.AssetType))
	ref, err := scanAssetRef(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	WHERE project_id = ? AND level = ? AND level_id = ?
	ORDER BY created_at, id
	`
	return c.queryAssetRefs(ctx, query, projectID, string(level), levelID)
}

func (c *Client) ListProjectAssetRefs(ctx context.Context, projectID string) ([]store.AssetReference, error) {
	query := `
	SELECT id, project_id, asset_id, asset_type, level, level_id, override_data, created_at, updated_at
	FROM asset_refs
	WHERE project_id = ?
	ORDER BY created_at, id
	`
	return c.queryAssetRefs(ctx, query, projectID)
}

func (c *Client) DeleteAssetRef(ctx context.Context, projectID string, level hierarchy.Level, levelID, assetID string, assetType store.AssetType) error {
	query := `
	DELETE FROM asset_refs
	WHERE project_id = ? AND level = ? AND level_id = ? AND asset_id = ? AND asset_type = ?
	`
	result, err := c.db.ExecContext(ctx, query, projectID, string(level), levelID, assetID, string(assetType))
	if err != nil {
		return fmt.Errorf("deleting asset reference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting asset reference: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("asset reference not found: %s %q %s/%s", level, levelID, assetType, assetID)
	}
	return nil
}

func (c *Client) queryAssetRefs(ctx context.Context, query string, args ...any) ([]store.AssetReference, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
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

func scanAssetRef(row rowScanner) (*store.AssetReference, error) {
	var ref store.AssetReference
	var assetType, level, createdAt, updatedAt string
	var overrideBytes []byte
	if err := row.Scan(&ref.ID, &ref.ProjectID, &ref.AssetID, &assetType,
		&level, &ref.LevelID, &overrideBytes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	ref.AssetType = store.AssetType(assetType)
	ref.Level = hierarchy.Level(level)
	ref.SourceLevel = ref.Level
	ref.SourceID = ref.LevelID

	override, err := unmarshalMap[any](overrideBytes)
	if err != nil {
		return nil, err
	}
	if len(override) > 0 {
		ref.OverrideData = override
		ref.IsOverridden = true
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	ref.CreatedAt = created
	ref.UpdatedAt = updated
	return &ref, nil
}
