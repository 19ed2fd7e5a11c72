package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func (c *Client) CreateRule(ctx context.Context, in store.RuleInput) (*store.PropagationRule, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	conditionsJSON, err := json.Marshal(orEmptyMap(in.Conditions))
	if err != nil {
		return nil, fmt.Errorf("marshaling conditions: %w", err)
	}

	ruleID := uuid.NewString()
	query := `
INSERT INTO propagation_rules (rule_id, project_id, asset_type, source_level, target_level, mode, conditions, priority, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at
`
	rule := store.PropagationRule{
		RuleID:      ruleID,
		ProjectID:   in.ProjectID,
		AssetType:   in.AssetType,
		SourceLevel: in.SourceLevel,
		TargetLevel: in.TargetLevel,
		Mode:        in.Mode,
		Conditions:  in.Conditions,
		Priority:    in.Priority,
		Enabled:     in.Enabled,
	}
	err = c.pool.QueryRow(ctx, query,
		ruleID, in.ProjectID, string(in.AssetType),
		string(in.SourceLevel), string(in.TargetLevel), string(in.Mode),
		conditionsJSON, in.Priority, in.Enabled).Scan(&rule.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}

	return &rule, nil
}

func (c *Client) ListRules(ctx context.Context, projectID string) ([]store.PropagationRule, error) {
	query := `
SELECT rule_id, project_id, asset_type, source_level, target_level, mode, conditions, priority, enabled, created_at
FROM propagation_rules
WHERE project_id = $1
ORDER BY created_at, rule_id
`
	return c.queryRules(ctx, query, projectID)
}

func (c *Client) ListEnabledRules(ctx context.Context, projectID string) ([]store.PropagationRule, error) {
	query := `
SELECT rule_id, project_id, asset_type, source_level, target_level, mode, conditions, priority, enabled, created_at
FROM propagation_rules
WHERE project_id = $1 AND enabled
ORDER BY created_at, rule_id
`
	return c.queryRules(ctx, query, projectID)
}

func (c *Client) SetRuleEnabled(ctx context.Context, projectID, ruleID string, enabled bool) error {
	query := `
UPDATE propagation_rules SET enabled = $1 WHERE project_id = $2 AND rule_id = $3
`
	tag, err := c.pool.Exec(ctx, query, enabled, projectID, ruleID)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule not found: %q", ruleID)
	}
	return nil
}

func (c *Client) queryRules(ctx context.Context, query string, args ...any) ([]store.PropagationRule, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var ruleList []store.PropagationRule
	for rows.Next() {
		var r store.PropagationRule
		var assetType, sourceLevel, targetLevel, mode string
		var conditionsBytes []byte
		if err := rows.Scan(&r.RuleID, &r.ProjectID, &assetType, &sourceLevel, &targetLevel,
			&mode, &conditionsBytes, &r.Priority, &r.Enabled, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		r.AssetType = store.AssetType(assetType)
		r.SourceLevel = hierarchy.Level(sourceLevel)
		r.TargetLevel = hierarchy.Level(targetLevel)
		r.Mode = store.PropagationMode(mode)

		if len(conditionsBytes) > 0 {
			conditions := make(map[string]string)
			if err := json.Unmarshal(conditionsBytes, &conditions); err != nil {
				return nil, fmt.Errorf("unmarshaling conditions: %w", err)
			}
			if len(conditions) > 0 {
				r.Conditions = conditions
			}
		}
		ruleList = append(ruleList, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rule rows: %w", err)
	}
	return ruleList, nil
}
