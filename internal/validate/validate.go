// Package validate audits asset usage across a whole project tree and
// reports rule-application problems as data rather than errors, so one run
// always yields the full picture.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"setcraft/internal/hierarchy"
	"setcraft/internal/resolve"
	"setcraft/internal/rules"
	"setcraft/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeDanglingReference   = "dangling_reference"
	codeDivergentOverride   = "divergent_override"
	codeOverrideWithoutRule = "override_without_rule"
	codeRuleUnreachable     = "rule_unreachable"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Level    hierarchy.Level
	LevelID  string
	AssetID  string
}

// AssetUsage summarizes where one asset is effective across the tree.
type AssetUsage struct {
	AssetID   string
	AssetType store.AssetType
	Count     int
	Levels    []hierarchy.Level
}

// Report is the outcome of one full-project audit. Consistent is true when
// no error-severity issues were found; warnings alone do not clear it.
type Report struct {
	ProjectID    string
	NodesVisited int
	Usage        []AssetUsage
	Issues       []Issue
	Consistent   bool
}

// Store is the persistence surface the validator needs: node linkage for the
// breadth-first walk plus everything the resolver reads.
type Store interface {
	resolve.Store
	ListChildren(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]store.Node, error)
	ListProjectAssetRefs(ctx context.Context, projectID string) ([]store.AssetReference, error)
}

// Run resolves every node of the project tree breadth-first and cross-checks
// the results against the locally stored references and the rule set.
func Run(ctx context.Context, projectID string, db Store, ruleList []store.PropagationRule) (*Report, error) {
	root, err := db.GetNode(ctx, projectID, hierarchy.LevelProject, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetching project root: %w", err)
	}
	if root == nil {
		return nil, &hierarchy.NotFoundError{Level: hierarchy.LevelProject, LevelID: projectID}
	}

	snapshot := rules.NewSnapshot(ruleList)
	resolver := resolve.New(db, snapshot)

	var contexts []*resolve.ResolvedContext
	queue := []store.Node{*root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := resolver.Resolve(ctx, projectID, node.Level, node.LevelID)
		if err != nil {
			return nil, fmt.Errorf("resolving %s %q: %w", node.Level, node.LevelID, err)
		}
		contexts = append(contexts, rc)

		children, err := db.ListChildren(ctx, projectID, node.Level, node.LevelID)
		if err != nil {
			return nil, fmt.Errorf("listing children of %s %q: %w", node.Level, node.LevelID, err)
		}
		queue = append(queue, children...)
	}

	localRefs, err := db.ListProjectAssetRefs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing project asset references: %w", err)
	}

	issues := make([]Issue, 0)
	issues = append(issues, checkDangling(contexts, localRefs)...)
	issues = append(issues, checkDivergentOverrides(localRefs)...)
	issues = append(issues, checkOverridesWithoutRules(projectID, localRefs, snapshot)...)
	issues = append(issues, checkUnreachableRules(ruleList)...)

	consistent := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			consistent = false
			break
		}
	}

	return &Report{
		ProjectID:    projectID,
		NodesVisited: len(contexts),
		Usage:        buildUsage(contexts),
		Issues:       issues,
		Consistent:   consistent,
	}, nil
}

type refKey struct {
	level     hierarchy.Level
	levelID   string
	assetID   string
	assetType store.AssetType
}

// checkDangling flags resolved entries whose claimed source node has no
// locally stored assignment. These indicate ghost references, typically a
// store read racing a delete, and are hard errors.
func checkDangling(contexts []*resolve.ResolvedContext, localRefs []store.AssetReference) []Issue {
	known := make(map[refKey]bool, len(localRefs))
	for _, ref := range localRefs {
		known[refKey{ref.Level, ref.LevelID, ref.AssetID, ref.AssetType}] = true
	}

	var issues []Issue
	seen := make(map[refKey]bool)
	for _, rc := range contexts {
		for _, at := range sortedTypes(rc.ResolvedAssets) {
			for _, entry := range rc.ResolvedAssets[at] {
				src := refKey{entry.SourceLevel, entry.SourceID, entry.AssetID, entry.AssetType}
				if known[src] || seen[src] {
					continue
				}
				seen[src] = true
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     codeDanglingReference,
					Message: fmt.Sprintf("asset %q (type %s) resolves from %s %q but is not assigned anywhere in the ancestor chain",
						entry.AssetID, entry.AssetType, entry.SourceLevel, entry.SourceID),
					Level:   entry.SourceLevel,
					LevelID: entry.SourceID,
					AssetID: entry.AssetID,
				})
			}
		}
	}
	return issues
}

// checkDivergentOverrides warns when the same asset carries different
// override data at sibling nodes of the same depth. Divergent per-shot
// tuning is often intentional, so this never escalates past a warning.
func checkDivergentOverrides(localRefs []store.AssetReference) []Issue {
	type groupKey struct {
		assetID   string
		assetType store.AssetType
		level     hierarchy.Level
	}
	variants := make(map[groupKey]map[string]bool)
	order := make([]groupKey, 0)

	for _, ref := range localRefs {
		if len(ref.OverrideData) == 0 {
			continue
		}
		canonical, err := json.Marshal(ref.OverrideData)
		if err != nil {
			continue
		}
		key := groupKey{ref.AssetID, ref.AssetType, ref.Level}
		if _, ok := variants[key]; !ok {
			variants[key] = make(map[string]bool)
			order = append(order, key)
		}
		variants[key][string(canonical)] = true
	}

	var issues []Issue
	for _, key := range order {
		if len(variants[key]) < 2 {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeDivergentOverride,
			Message: fmt.Sprintf("asset %q (type %s) carries %d different override values at %s level",
				key.assetID, key.assetType, len(variants[key]), key.level),
			Level:   key.level,
			AssetID: key.assetID,
		})
	}
	return issues
}

// checkOverridesWithoutRules warns when a node overrides an asset that is
// also assigned at a shallower level while no override or merge rule governs
// the transition into that node's level, so the override data never wins.
func checkOverridesWithoutRules(projectID string, localRefs []store.AssetReference, snapshot *rules.Snapshot) []Issue {
	shallowest := make(map[string]int)
	for _, ref := range localRefs {
		key := ref.AssetID + "|" + string(ref.AssetType)
		depth := ref.Level.Depth()
		if cur, ok := shallowest[key]; !ok || depth < cur {
			shallowest[key] = depth
		}
	}

	var issues []Issue
	for _, ref := range localRefs {
		if len(ref.OverrideData) == 0 || ref.Level == hierarchy.LevelProject {
			continue
		}
		key := ref.AssetID + "|" + string(ref.AssetType)
		if shallowest[key] >= ref.Level.Depth() {
			continue
		}
		parentLevel, ok := hierarchy.ParentLevel(ref.Level)
		if !ok {
			continue
		}
		condCtx := map[string]string{
			"project_id": projectID,
			"level":      string(ref.Level),
			"level_id":   ref.LevelID,
		}
		rule, found, err := snapshot.FindRule(ref.AssetType, parentLevel, ref.Level, condCtx)
		if err == nil && found && (rule.Mode == store.ModeOverride || rule.Mode == store.ModeMerge) {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeOverrideWithoutRule,
			Message: fmt.Sprintf("asset %q is overridden at %s level with no matching %s-to-%s rule for type %s",
				ref.AssetID, ref.Level, parentLevel, ref.Level, ref.AssetType),
			Level:   ref.Level,
			LevelID: ref.LevelID,
			AssetID: ref.AssetID,
		})
	}
	return issues
}

// checkUnreachableRules warns about enabled rules whose level pair is not an
// adjacent parent-to-child transition: the resolver walk only ever evaluates
// adjacent transitions, so such rules can never govern.
func checkUnreachableRules(ruleList []store.PropagationRule) []Issue {
	var issues []Issue
	for _, r := range ruleList {
		if !r.Enabled {
			continue
		}
		child, ok := hierarchy.ChildLevel(r.SourceLevel)
		if ok && child == r.TargetLevel {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeRuleUnreachable,
			Message: fmt.Sprintf("rule %s (%s %s->%s) does not describe an adjacent transition and can never govern a resolution",
				r.RuleID, r.AssetType, r.SourceLevel, r.TargetLevel),
		})
	}
	return issues
}

func buildUsage(contexts []*resolve.ResolvedContext) []AssetUsage {
	type usageKey struct {
		assetID   string
		assetType store.AssetType
	}
	counts := make(map[usageKey]int)
	levels := make(map[usageKey]map[hierarchy.Level]bool)

	for _, rc := range contexts {
		for _, entries := range rc.ResolvedAssets {
			for _, entry := range entries {
				key := usageKey{entry.AssetID, entry.AssetType}
				counts[key]++
				if levels[key] == nil {
					levels[key] = make(map[hierarchy.Level]bool)
				}
				levels[key][rc.Level] = true
			}
		}
	}

	usage := make([]AssetUsage, 0, len(counts))
	for key, count := range counts {
		levelList := make([]hierarchy.Level, 0, len(levels[key]))
		for l := range levels[key] {
			levelList = append(levelList, l)
		}
		sort.Slice(levelList, func(i, j int) bool { return levelList[i].Depth() < levelList[j].Depth() })
		usage = append(usage, AssetUsage{
			AssetID:   key.assetID,
			AssetType: key.assetType,
			Count:     count,
			Levels:    levelList,
		})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].AssetID != usage[j].AssetID {
			return usage[i].AssetID < usage[j].AssetID
		}
		return usage[i].AssetType < usage[j].AssetType
	})
	return usage
}

func sortedTypes(m map[store.AssetType][]store.AssetReference) []store.AssetType {
	out := make([]store.AssetType, 0, len(m))
	for at := range m {
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
