package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"setcraft/internal/generation"
	"setcraft/internal/hierarchy"
	"setcraft/internal/resolve"
	"setcraft/internal/rules"
	"setcraft/internal/store"
	"setcraft/internal/validate"
)

type ResolveInput struct {
	Level     string `json:"level" jsonschema:"hierarchy level of the target node"`
	LevelID   string `json:"level_id" jsonschema:"identifier of the target node"`
	AssetType string `json:"asset_type,omitempty" jsonschema:"restrict resolution to one asset type"`
}

type AssignAssetInput struct {
	Level        string         `json:"level" jsonschema:"hierarchy level of the node"`
	LevelID      string         `json:"level_id" jsonschema:"identifier of the node"`
	AssetID      string         `json:"asset_id" jsonschema:"asset identifier"`
	AssetType    string         `json:"asset_type" jsonschema:"asset type"`
	OverrideData map[string]any `json:"override_data,omitempty" jsonschema:"node-specific parameter overrides"`
}

type AddRuleInput struct {
	AssetType   string            `json:"asset_type" jsonschema:"asset type the rule applies to"`
	SourceLevel string            `json:"source_level" jsonschema:"level the asset flows from"`
	TargetLevel string            `json:"target_level" jsonschema:"level the asset flows to"`
	Mode        string            `json:"mode" jsonschema:"inherit, override, merge, or block"`
	Conditions  map[string]string `json:"conditions,omitempty" jsonschema:"exact-match conditions on the resolution context"`
	Priority    int               `json:"priority,omitempty" jsonschema:"higher priority wins"`
}

type ListRulesInput struct{}

type ValidateInput struct{}

type AssetRefOutput struct {
	AssetID      string         `json:"asset_id"`
	AssetType    string         `json:"asset_type"`
	SourceLevel  string         `json:"source_level"`
	SourceID     string         `json:"source_id"`
	OverrideData map[string]any `json:"override_data,omitempty"`
	IsOverridden bool           `json:"is_overridden"`
}

type ResolveOutput struct {
	ProjectID       string                      `json:"project_id"`
	Level           string                      `json:"level"`
	LevelID         string                      `json:"level_id"`
	TotalAssets     int                         `json:"total_assets"`
	AssetTypeCounts map[string]int              `json:"asset_type_counts"`
	ResolvedAssets  map[string][]AssetRefOutput `json:"resolved_assets"`
}

type RuleOutput struct {
	RuleID      string            `json:"rule_id"`
	AssetType   string            `json:"asset_type"`
	SourceLevel string            `json:"source_level"`
	TargetLevel string            `json:"target_level"`
	Mode        string            `json:"mode"`
	Conditions  map[string]string `json:"conditions,omitempty"`
	Priority    int               `json:"priority"`
	Enabled     bool              `json:"enabled"`
}

type ListRulesOutput struct {
	Rules []RuleOutput `json:"rules"`
}

type IssueOutput struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Level    string `json:"level,omitempty"`
	LevelID  string `json:"level_id,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
}

type UsageOutput struct {
	AssetID   string   `json:"asset_id"`
	AssetType string   `json:"asset_type"`
	Count     int      `json:"count"`
	Levels    []string `json:"levels"`
}

type ValidateOutput struct {
	ProjectID    string        `json:"project_id"`
	NodesVisited int           `json:"nodes_visited"`
	Consistent   bool          `json:"consistent"`
	Usage        []UsageOutput `json:"usage"`
	Issues       []IssueOutput `json:"issues"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "resolve_assets",
		Description: "Resolve the effective assets at a hierarchy node",
	}, s.handleResolveAssets)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "resolve_for_generation",
		Description: "Resolve a node and format the result for generation back ends",
	}, s.handleResolveForGeneration)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "validate_project",
		Description: "Audit asset usage and rule application across the whole project",
	}, s.handleValidateProject)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "assign_asset",
		Description: "Assign an asset to a hierarchy node",
	}, s.handleAssignAsset)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "add_rule",
		Description: "Add a propagation rule",
	}, s.handleAddRule)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_rules",
		Description: "List the project's propagation rules",
	}, s.handleListRules)
}

func (s *Server) resolver(ctx context.Context) (*resolve.Resolver, error) {
	ruleList, err := s.db.ListEnabledRules(ctx, s.projectID)
	if err != nil {
		return nil, fmt.Errorf("listing enabled rules: %w", err)
	}
	snapshot := rules.NewSnapshot(ruleList, rules.WithStrict(s.strict))
	return resolve.New(s.db, snapshot), nil
}

func (s *Server) handleResolveAssets(ctx context.Context, req *sdk.CallToolRequest, input ResolveInput) (*sdk.CallToolResult, ResolveOutput, error) {
	rc, err := s.resolveInput(ctx, input)
	if err != nil {
		return nil, ResolveOutput{}, err
	}
	return nil, resolveOutput(rc), nil
}

func (s *Server) handleResolveForGeneration(ctx context.Context, req *sdk.CallToolRequest, input ResolveInput) (*sdk.CallToolResult, generation.Context, error) {
	rc, err := s.resolveInput(ctx, input)
	if err != nil {
		return nil, generation.Context{}, err
	}
	return nil, *generation.Format(rc), nil
}

func (s *Server) resolveInput(ctx context.Context, input ResolveInput) (*resolve.ResolvedContext, error) {
	level, err := hierarchy.ParseLevel(input.Level)
	if err != nil {
		return nil, err
	}
	if input.LevelID == "" {
		return nil, fmt.Errorf("level_id is required")
	}
	resolver, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	if input.AssetType != "" {
		assetType, err := store.ParseAssetType(input.AssetType)
		if err != nil {
			return nil, err
		}
		return resolver.Resolve(ctx, s.projectID, level, input.LevelID, assetType)
	}
	return resolver.Resolve(ctx, s.projectID, level, input.LevelID)
}

func (s *Server) handleValidateProject(ctx context.Context, req *sdk.CallToolRequest, input ValidateInput) (*sdk.CallToolResult, ValidateOutput, error) {
	ruleList, err := s.db.ListEnabledRules(ctx, s.projectID)
	if err != nil {
		return nil, ValidateOutput{}, fmt.Errorf("listing enabled rules: %w", err)
	}
	report, err := validate.Run(ctx, s.projectID, s.db, ruleList)
	if err != nil {
		return nil, ValidateOutput{}, err
	}

	out := ValidateOutput{
		ProjectID:    report.ProjectID,
		NodesVisited: report.NodesVisited,
		Consistent:   report.Consistent,
		Usage:        make([]UsageOutput, 0, len(report.Usage)),
		Issues:       make([]IssueOutput, 0, len(report.Issues)),
	}
	for _, usage := range report.Usage {
		levels := make([]string, 0, len(usage.Levels))
		for _, l := range usage.Levels {
			levels = append(levels, string(l))
		}
		out.Usage = append(out.Usage, UsageOutput{
			AssetID:   usage.AssetID,
			AssetType: string(usage.AssetType),
			Count:     usage.Count,
			Levels:    levels,
		})
	}
	for _, issue := range report.Issues {
		out.Issues = append(out.Issues, IssueOutput{
			Severity: string(issue.Severity),
			Code:     issue.Code,
			Message:  issue.Message,
			Level:    string(issue.Level),
			LevelID:  issue.LevelID,
			AssetID:  issue.AssetID,
		})
	}
	return nil, out, nil
}

func (s *Server) handleAssignAsset(ctx context.Context, req *sdk.CallToolRequest, input AssignAssetInput) (*sdk.CallToolResult, AssetRefOutput, error) {
	level, err := hierarchy.ParseLevel(input.Level)
	if err != nil {
		return nil, AssetRefOutput{}, err
	}
	assetType, err := store.ParseAssetType(input.AssetType)
	if err != nil {
		return nil, AssetRefOutput{}, err
	}

	node, err := s.db.GetNode(ctx, s.projectID, level, input.LevelID)
	if err != nil {
		return nil, AssetRefOutput{}, fmt.Errorf("fetching node: %w", err)
	}
	if node == nil {
		return nil, AssetRefOutput{}, &hierarchy.NotFoundError{Level: level, LevelID: input.LevelID}
	}

	ref, err := s.db.UpsertAssetRef(ctx, store.AssetReferenceInput{
		ProjectID:    s.projectID,
		AssetID:      input.AssetID,
		AssetType:    assetType,
		Level:        level,
		LevelID:      input.LevelID,
		OverrideData: input.OverrideData,
	})
	if err != nil {
		return nil, AssetRefOutput{}, err
	}
	return nil, assetRefOutput(*ref), nil
}

func (s *Server) handleAddRule(ctx context.Context, req *sdk.CallToolRequest, input AddRuleInput) (*sdk.CallToolResult, RuleOutput, error) {
	assetType, err := store.ParseAssetType(input.AssetType)
	if err != nil {
		return nil, RuleOutput{}, err
	}
	sourceLevel, err := hierarchy.ParseLevel(input.SourceLevel)
	if err != nil {
		return nil, RuleOutput{}, err
	}
	targetLevel, err := hierarchy.ParseLevel(input.TargetLevel)
	if err != nil {
		return nil, RuleOutput{}, err
	}
	mode, err := store.ParseMode(input.Mode)
	if err != nil {
		return nil, RuleOutput{}, err
	}

	rule, err := s.db.CreateRule(ctx, store.RuleInput{
		ProjectID:   s.projectID,
		AssetType:   assetType,
		SourceLevel: sourceLevel,
		TargetLevel: targetLevel,
		Mode:        mode,
		Conditions:  input.Conditions,
		Priority:    input.Priority,
		Enabled:     true,
	})
	if err != nil {
		return nil, RuleOutput{}, err
	}
	return nil, ruleOutput(*rule), nil
}

func (s *Server) handleListRules(ctx context.Context, req *sdk.CallToolRequest, input ListRulesInput) (*sdk.CallToolResult, ListRulesOutput, error) {
	ruleList, err := s.db.ListRules(ctx, s.projectID)
	if err != nil {
		return nil, ListRulesOutput{}, err
	}
	out := ListRulesOutput{Rules: make([]RuleOutput, 0, len(ruleList))}
	for _, rule := range ruleList {
		out.Rules = append(out.Rules, ruleOutput(rule))
	}
	return nil, out, nil
}

func resolveOutput(rc *resolve.ResolvedContext) ResolveOutput {
	out := ResolveOutput{
		ProjectID:       rc.ProjectID,
		Level:           string(rc.Level),
		LevelID:         rc.LevelID,
		TotalAssets:     rc.TotalAssets,
		AssetTypeCounts: make(map[string]int, len(rc.AssetTypeCounts)),
		ResolvedAssets:  make(map[string][]AssetRefOutput, len(rc.ResolvedAssets)),
	}
	for at, count := range rc.AssetTypeCounts {
		out.AssetTypeCounts[string(at)] = count
	}
	for at, entries := range rc.ResolvedAssets {
		refs := make([]AssetRefOutput, 0, len(entries))
		for _, entry := range entries {
			refs = append(refs, assetRefOutput(entry))
		}
		out.ResolvedAssets[string(at)] = refs
	}
	return out
}

func assetRefOutput(ref store.AssetReference) AssetRefOutput {
	return AssetRefOutput{
		AssetID:      ref.AssetID,
		AssetType:    string(ref.AssetType),
		SourceLevel:  string(ref.SourceLevel),
		SourceID:     ref.SourceID,
		OverrideData: ref.OverrideData,
		IsOverridden: ref.IsOverridden,
	}
}

func ruleOutput(rule store.PropagationRule) RuleOutput {
	return RuleOutput{
		RuleID:      rule.RuleID,
		AssetType:   string(rule.AssetType),
		SourceLevel: string(rule.SourceLevel),
		TargetLevel: string(rule.TargetLevel),
		Mode:        string(rule.Mode),
		Conditions:  rule.Conditions,
		Priority:    rule.Priority,
		Enabled:     rule.Enabled,
	}
}
