package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

const ruleColumns = "rule_id, project_id, asset_type, source_level, target_level, mode, conditions, priority, enabled, created_at"

func (c *Client) CreateRule(ctx context.Context, in store.RuleInput) (*store.PropagationRule, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	conditionsJSON, err := marshalMap(in.Conditions)
	if err != nil {
		return nil, err
	}

	rule := store.PropagationRule{
		RuleID:      uuid.NewString(),
		ProjectID:   in.ProjectID,
		AssetType:   in.AssetType,
		SourceLevel: in.SourceLevel,
		TargetLevel: in.TargetLevel,
		Mode:        in.Mode,
		Conditions:  in.Conditions,
		Priority:    in.Priority,
		Enabled:     in.Enabled,
		CreatedAt:   time.Now().UTC(),
	}

	query := `
	INSERT INTO propagation_rules (` + ruleColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = c.db.ExecContext(ctx, query,
		rule.RuleID, rule.ProjectID, string(rule.AssetType),
		string(rule.SourceLevel), string(rule.TargetLevel), string(rule.Mode),
		string(conditionsJSON), rule.Priority, boolToInt(rule.Enabled), formatTime(rule.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}

	return &rule, nil
}

func (c *Client) ListRules(ctx context.Context, projectID string) ([]store.PropagationRule, error) {
	query := `
	SELECT ` + ruleColumns + `
	FROM propagation_rules
	WHERE project_id = ?
	ORDER BY created_at, rule_id
	`
	return c.queryRules(ctx, query, projectID)
}

func (c *Client) ListEnabledRules(ctx context.Context, projectID string) ([]store.PropagationRule, error) {
	query := `
	SELECT ` + ruleColumns + `
	FROM propagation_rules
	WHERE project_id = ? AND enabled = 1
	ORDER BY created_at, rule_id
	`
	return c.queryRules(ctx, query, projectID)
}

func (c *Client) SetRuleEnabled(ctx context.Context, projectID, ruleID string, enabled bool) error {
	query := `
	UPDATE propagation_rules SET enabled = ? WHERE project_id = ? AND rule_id = ?
	`
	result, err := c.db.ExecContext(ctx, query, boolToInt(enabled), projectID, ruleID)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule not found: %q", ruleID)
	}
	return nil
}

func (c *Client) queryRules(ctx context.Context, query string, args ...any) ([]store.PropagationRule, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var ruleList []store.PropagationRule
	for rows.Next() {
		var r store.PropagationRule
		var assetType, sourceLevel, targetLevel, mode, createdAt string
		var conditionsBytes []byte
		var enabled int
		if err := rows.Scan(&r.RuleID, &r.ProjectID, &assetType, &sourceLevel, &targetLevel,
			&mode, &conditionsBytes, &r.Priority, &enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		r.AssetType = store.AssetType(assetType)
		r.SourceLevel = hierarchy.Level(sourceLevel)
		r.TargetLevel = hierarchy.Level(targetLevel)
		r.Mode = store.PropagationMode(mode)
		r.Enabled = enabled != 0

		conditions, err := unmarshalMap[string](conditionsBytes)
		if err != nil {
			return nil, err
		}
		if len(conditions) > 0 {
			r.Conditions = conditions
		}

		created, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = created
		ruleList = append(ruleList, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rule rows: %w", err)
	}
	return ruleList, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
