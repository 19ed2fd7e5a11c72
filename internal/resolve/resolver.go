// Package resolve computes the effective set of assets visible at any node
// of the production hierarchy by walking the path from the project root to
// the node and applying propagation rules at each transition.
package resolve

import (
	"context"
	"fmt"
	"sort"

	"setcraft/internal/hierarchy"
	"setcraft/internal/rules"
	"setcraft/internal/store"
)

// Store is the persistence surface the resolver reads. Implementations must
// return asset references in stable creation order.
type Store interface {
	GetNode(ctx context.Context, projectID string, level hierarchy.Level, levelID string) (*store.Node, error)
	ListAssetRefs(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]store.AssetReference, error)
}

// ResolvedContext is the resolver's output for one target node. Within each
// asset type, entries local to the target node come first, then inherited
// entries ordered nearest ancestor first.
type ResolvedContext struct {
	ProjectID       string
	Level           hierarchy.Level
	LevelID         string
	ResolvedAssets  map[store.AssetType][]store.AssetReference
	TotalAssets     int
	AssetTypeCounts map[store.AssetType]int
}

// Resolver walks hierarchy paths against one immutable rule snapshot. It is
// stateless apart from its collaborators and safe for concurrent use.
type Resolver struct {
	db         Store
	snapshot   *rules.Snapshot
	conditions map[string]string
}

type Option func(*Resolver)

// WithConditions adds caller-supplied keys to the condition context that
// rule conditions are matched against.
func WithConditions(conditions map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range conditions {
			r.conditions[k] = v
		}
	}
}

func New(db Store, snapshot *rules.Snapshot, opts ...Option) *Resolver {
	r := &Resolver{
		db:         db,
		snapshot:   snapshot,
		conditions: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the effective assets for the target node. Missing rules
// default to inherit, so an empty rule set is a valid, fully-permissive
// configuration. Passing asset types restricts resolution to those types.
// Returns *hierarchy.NotFoundError when the node or any ancestor link is
// missing.
func (r *Resolver) Resolve(ctx context.Context, projectID string, level hierarchy.Level, levelID string, assetTypes ...store.AssetType) (*ResolvedContext, error) {
	target, err := r.db.GetNode(ctx, projectID, level, levelID)
	if err != nil {
		return nil, fmt.Errorf("fetching target node: %w", err)
	}
	if target == nil {
		return nil, &hierarchy.NotFoundError{Level: level, LevelID: levelID}
	}

	path, err := hierarchy.BuildPath(ctx, projectID, level, levelID, r.ancestorLookup(projectID))
	if err != nil {
		return nil, err
	}

	filter := make(map[store.AssetType]bool, len(assetTypes))
	for _, at := range assetTypes {
		filter[at] = true
	}

	condCtx := map[string]string{
		"project_id": projectID,
		"level":      string(level),
		"level_id":   levelID,
	}
	for k, v := range r.conditions {
		condCtx[k] = v
	}

	acc := newAccumulator()
	suppressed := make(map[store.AssetType]bool)
	var prevLevel hierarchy.Level

	for i, node := range path {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		locals, err := r.db.ListAssetRefs(ctx, projectID, node.Level, node.LevelID)
		if err != nil {
			return nil, fmt.Errorf("listing asset references at %s %q: %w", node.Level, node.LevelID, err)
		}
		if len(filter) > 0 {
			kept := locals[:0:0]
			for _, ref := range locals {
				if filter[ref.AssetType] {
					kept = append(kept, ref)
				}
			}
			locals = kept
		}

		// Asset types whose local assignments were consumed by a rule at
		// this transition; the remainder are added as fresh local entries.
		handled := make(map[store.AssetType]bool)

		if i > 0 {
			for _, at := range acc.typeOrder() {
				if suppressed[at] {
					acc.removeType(at)
					continue
				}
				rule, ok, err := r.snapshot.FindRule(at, prevLevel, node.Level, condCtx)
				if err != nil {
					return nil, err
				}
				mode := store.ModeInherit
				if ok {
					mode = rule.Mode
				}
				typeLocals := refsOfType(locals, at)

				switch mode {
				case store.ModeOverride:
					// A local assignment replaces everything inherited so
					// far; without one the rule degrades to inherit.
					if len(typeLocals) > 0 {
						acc.removeType(at)
						for _, ref := range typeLocals {
							acc.add(localEntry(ref, true), false)
						}
						handled[at] = true
					}
				case store.ModeMerge:
					for _, ref := range typeLocals {
						acc.add(localEntry(ref, true), true)
					}
					handled[at] = true
				case store.ModeBlock:
					// Block stops inheritance below this node. Local
					// assignments at the node itself are unaffected and are
					// picked up below as fresh entries.
					acc.removeType(at)
					suppressed[at] = true
				default:
					for _, ref := range typeLocals {
						acc.add(localEntry(ref, false), false)
					}
					handled[at] = true
				}
			}
		}

		for _, ref := range locals {
			if handled[ref.AssetType] {
				continue
			}
			acc.add(localEntry(ref, false), false)
		}
		prevLevel = node.Level
	}

	return acc.finalize(projectID, path.Target()), nil
}

func (r *Resolver) ancestorLookup(projectID string) hierarchy.AncestorLookup {
	return func(ctx context.Context, level hierarchy.Level, levelID string) (string, bool, error) {
		node, err := r.db.GetNode(ctx, projectID, level, levelID)
		if err != nil {
			return "", false, err
		}
		if node == nil || node.ParentID == "" {
			return "", false, nil
		}
		return node.ParentID, true, nil
	}
}

// localEntry copies a stored reference into the accumulator shape. Stored
// references are always local to the node they live at, so their source
// fields already point at that node.
func localEntry(ref store.AssetReference, ruleProduced bool) store.AssetReference {
	out := ref
	out.SourceLevel = ref.Level
	out.SourceID = ref.LevelID
	out.IsOverridden = ruleProduced || len(ref.OverrideData) > 0
	return out
}

func refsOfType(refs []store.AssetReference, at store.AssetType) []store.AssetReference {
	var out []store.AssetReference
	for _, ref := range refs {
		if ref.AssetType == at {
			out = append(out, ref)
		}
	}
	return out
}

// accumulator carries the per-type effective entries across the walk,
// preserving first-seen type order so re-resolution is byte-identical.
// ordered tracks membership of order so a type removed by an override or
// block and re-added later keeps its single slot.
type accumulator struct {
	order   []store.AssetType
	ordered map[store.AssetType]bool
	byType  map[store.AssetType][]store.AssetReference
}

func newAccumulator() *accumulator {
	return &accumulator{
		ordered: make(map[store.AssetType]bool),
		byType:  make(map[store.AssetType][]store.AssetReference),
	}
}

func (a *accumulator) typeOrder() []store.AssetType {
	out := make([]store.AssetType, 0, len(a.order))
	for _, at := range a.order {
		if _, ok := a.byType[at]; ok {
			out = append(out, at)
		}
	}
	return out
}

func (a *accumulator) removeType(at store.AssetType) {
	delete(a.byType, at)
}

// add appends an entry to its type's list. Unless allowDup is set (merge
// rules keep both copies for audit), an entry repeating an assetId already
// present replaces the older entry in place, preserving the no-duplicate
// invariant.
func (a *accumulator) add(ref store.AssetReference, allowDup bool) {
	entries := a.byType[ref.AssetType]
	if !a.ordered[ref.AssetType] {
		a.order = append(a.order, ref.AssetType)
		a.ordered[ref.AssetType] = true
	}
	if !allowDup {
		for i := range entries {
			if entries[i].AssetID == ref.AssetID {
				entries[i] = ref
				a.byType[ref.AssetType] = entries
				return
			}
		}
	}
	a.byType[ref.AssetType] = append(entries, ref)
}

func (a *accumulator) finalize(projectID string, target hierarchy.Node) *ResolvedContext {
	resolved := make(map[store.AssetType][]store.AssetReference, len(a.byType))
	counts := make(map[store.AssetType]int, len(a.byType))
	total := 0

	for at, entries := range a.byType {
		if len(entries) == 0 {
			continue
		}
		sorted := make([]store.AssetReference, len(entries))
		copy(sorted, entries)
		sort.SliceStable(sorted, func(i, j int) bool {
			iLocal := sorted[i].SourceLevel == target.Level && sorted[i].SourceID == target.LevelID
			jLocal := sorted[j].SourceLevel == target.Level && sorted[j].SourceID == target.LevelID
			if iLocal != jLocal {
				return iLocal
			}
			return sorted[i].SourceLevel.Depth() > sorted[j].SourceLevel.Depth()
		})
		for k := range sorted {
			sorted[k].Level = target.Level
			sorted[k].LevelID = target.LevelID
		}
		resolved[at] = sorted
		counts[at] = len(sorted)
		total += len(sorted)
	}

	return &ResolvedContext{
		ProjectID:       projectID,
		Level:           target.Level,
		LevelID:         target.LevelID,
		ResolvedAssets:  resolved,
		TotalAssets:     total,
		AssetTypeCounts: counts,
	}
}
