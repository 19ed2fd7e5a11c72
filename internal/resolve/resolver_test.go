package resolve

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"setcraft/internal/hierarchy"
	"setcraft/internal/rules"
	"setcraft/internal/store"
)

// mockStore is an in-memory Store for resolver tests. Nodes and references
// are keyed by level|levelId; references keep insertion order, matching the
// stable creation order the real stores guarantee.
type mockStore struct {
	nodes map[string]store.Node
	refs  map[string][]store.AssetReference
}

func newMockStore() *mockStore {
	return &mockStore{
		nodes: make(map[string]store.Node),
		refs:  make(map[string][]store.AssetReference),
	}
}

func key(level hierarchy.Level, levelID string) string {
	return string(level) + "|" + levelID
}

func (m *mockStore) addNode(level hierarchy.Level, levelID, parentID string) {
	m.nodes[key(level, levelID)] = store.Node{
		ProjectID: "P1",
		Level:     level,
		LevelID:   levelID,
		ParentID:  parentID,
	}
}

func (m *mockStore) addRef(level hierarchy.Level, levelID, assetID string, assetType store.AssetType, override map[string]any) {
	k := key(level, levelID)
	m.refs[k] = append(m.refs[k], store.AssetReference{
		ID:           assetID + "@" + levelID,
		ProjectID:    "P1",
		AssetID:      assetID,
		AssetType:    assetType,
		Level:        level,
		LevelID:      levelID,
		SourceLevel:  level,
		SourceID:     levelID,
		OverrideData: override,
		IsOverridden: len(override) > 0,
	})
}

func (m *mockStore) GetNode(_ context.Context, _ string, level hierarchy.Level, levelID string) (*store.Node, error) {
	node, ok := m.nodes[key(level, levelID)]
	if !ok {
		return nil, nil
	}
	return &node, nil
}

func (m *mockStore) ListAssetRefs(_ context.Context, _ string, level hierarchy.Level, levelID string) ([]store.AssetReference, error) {
	return m.refs[key(level, levelID)], nil
}

// fullTree builds one node per level: P1 > A1 > C1 > S1 > SH1 > T1.
func fullTree() *mockStore {
	db := newMockStore()
	db.addNode(hierarchy.LevelProject, "P1", "")
	db.addNode(hierarchy.LevelAct, "A1", "P1")
	db.addNode(hierarchy.LevelChapter, "C1", "A1")
	db.addNode(hierarchy.LevelScene, "S1", "C1")
	db.addNode(hierarchy.LevelShot, "SH1", "S1")
	db.addNode(hierarchy.LevelTake, "T1", "SH1")
	return db
}

func snapshotOf(t *testing.T, ruleInputs ...store.PropagationRule) *rules.Snapshot {
	t.Helper()
	for i := range ruleInputs {
		ruleInputs[i].ProjectID = "P1"
		ruleInputs[i].Enabled = true
		if ruleInputs[i].CreatedAt.IsZero() {
			ruleInputs[i].CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return rules.NewSnapshot(ruleInputs)
}

func assetIDs(refs []store.AssetReference) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.AssetID
	}
	return out
}

func TestResolve_HeroCharacterInherits(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "char-hero", store.AssetCharacter, nil)

	r := New(db, snapshotOf(t))
	rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelAct, "A1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	chars := rc.ResolvedAssets[store.AssetCharacter]
	if len(chars) != 1 {
		t.Fatalf("expected one character, got %d", len(chars))
	}
	got := chars[0]
	if got.AssetID != "char-hero" {
		t.Fatalf("expected char-hero, got %s", got.AssetID)
	}
	if got.SourceLevel != hierarchy.LevelProject || got.SourceID != "P1" {
		t.Fatalf("expected source project P1, got %s %s", got.SourceLevel, got.SourceID)
	}
	if got.Level != hierarchy.LevelAct || got.LevelID != "A1" {
		t.Fatalf("expected entry stamped to act A1, got %s %s", got.Level, got.LevelID)
	}
	if got.IsOverridden {
		t.Fatalf("inherited entry must not be marked overridden")
	}
	if rc.TotalAssets != 1 || rc.AssetTypeCounts[store.AssetCharacter] != 1 {
		t.Fatalf("unexpected counts: total=%d counts=%v", rc.TotalAssets, rc.AssetTypeCounts)
	}
}

func TestResolve_BlockRuleYieldsEmpty(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "char-hero", store.AssetCharacter, nil)

	snap := snapshotOf(t, store.PropagationRule{
		RuleID:      "r-block",
		AssetType:   store.AssetCharacter,
		SourceLevel: hierarchy.LevelProject,
		TargetLevel: hierarchy.LevelAct,
		Mode:        store.ModeBlock,
	})
	r := New(db, snap)
	rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelAct, "A1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rc.TotalAssets != 0 || len(rc.ResolvedAssets) != 0 {
		t.Fatalf("expected empty result, got %+v", rc.ResolvedAssets)
	}
}

func TestResolve_DefaultOpenness(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "char-hero", store.AssetCharacter, nil)
	db.addRef(hierarchy.LevelAct, "A1", "char-mentor", store.AssetCharacter, nil)
	db.addRef(hierarchy.LevelScene, "S1", "char-extra", store.AssetCharacter, nil)

	r := New(db, snapshotOf(t))
	rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelTake, "T1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got := assetIDs(rc.ResolvedAssets[store.AssetCharacter])
	// No local entries at the take, so nearest ancestor comes first.
	want := []string{"char-extra", "char-mentor", "char-hero"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResolve_OverrideReplacesInherited(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelScene, "S1", "loc-forest", store.AssetLocation, nil)
	db.addRef(hierarchy.LevelShot, "SH1", "loc-clearing", store.AssetLocation, nil)

	snap := snapshotOf(t, store.PropagationRule{
		RuleID:      "r-override",
		AssetType:   store.AssetLocation,
		SourceLevel: hierarchy.LevelScene,
		TargetLevel: hierarchy.LevelShot,
		Mode:        store.ModeOverride,
	})
	r := New(db, snap)

	t.Run("local assignment replaces everything", func(t *testing.T) {
		rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		locs := rc.ResolvedAssets[store.AssetLocation]
		if len(locs) != 1 {
			t.Fatalf("expected one location, got %v", assetIDs(locs))
		}
		if locs[0].AssetID != "loc-clearing" || !locs[0].IsOverridden {
			t.Fatalf("expected overridden loc-clearing, got %+v", locs[0])
		}
	})

	t.Run("no local assignment falls back to inherit", func(t *testing.T) {
		empty := fullTree()
		empty.addRef(hierarchy.LevelScene, "S1", "loc-forest", store.AssetLocation, nil)
		rc, err := New(empty, snap).Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		locs := rc.ResolvedAssets[store.AssetLocation]
		if len(locs) != 1 || locs[0].AssetID != "loc-forest" {
			t.Fatalf("expected inherited loc-forest, got %v", assetIDs(locs))
		}
	})
}

func TestResolve_MergeKeepsBoth(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "style-noir", store.AssetStyle, nil)
	db.addRef(hierarchy.LevelAct, "A1", "style-neon", store.AssetStyle, nil)

	snap := snapshotOf(t, store.PropagationRule{
		RuleID:      "r-merge",
		AssetType:   store.AssetStyle,
		SourceLevel: hierarchy.LevelProject,
		TargetLevel: hierarchy.LevelAct,
		Mode:        store.ModeMerge,
	})
	rc, err := New(db, snap).Resolve(context.Background(), "P1", hierarchy.LevelAct, "A1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	styles := rc.ResolvedAssets[store.AssetStyle]
	got := assetIDs(styles)
	want := []string{"style-neon", "style-noir"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !styles[0].IsOverridden {
		t.Fatalf("merged local entry must be marked overridden")
	}
	if styles[1].IsOverridden {
		t.Fatalf("inherited entry must not be marked overridden")
	}
}

func TestResolve_OverrideThenMerge(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "style-noir", store.AssetStyle, nil)
	db.addRef(hierarchy.LevelAct, "A1", "style-neon", store.AssetStyle, nil)
	db.addRef(hierarchy.LevelChapter, "C1", "style-grain", store.AssetStyle, nil)

	snap := snapshotOf(t,
		store.PropagationRule{
			RuleID:      "r-override",
			AssetType:   store.AssetStyle,
			SourceLevel: hierarchy.LevelProject,
			TargetLevel: hierarchy.LevelAct,
			Mode:        store.ModeOverride,
		},
		store.PropagationRule{
			RuleID:      "r-merge",
			AssetType:   store.AssetStyle,
			SourceLevel: hierarchy.LevelAct,
			TargetLevel: hierarchy.LevelChapter,
			Mode:        store.ModeMerge,
		},
	)
	r := New(db, snap)

	t.Run("merge below an override adds each local once", func(t *testing.T) {
		rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelChapter, "C1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got := assetIDs(rc.ResolvedAssets[store.AssetStyle])
		want := []string{"style-grain", "style-neon"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		if rc.TotalAssets != 2 || rc.AssetTypeCounts[store.AssetStyle] != 2 {
			t.Fatalf("unexpected counts: total=%d counts=%v", rc.TotalAssets, rc.AssetTypeCounts)
		}
	})

	t.Run("plain inheritance below the merge stays duplicate free", func(t *testing.T) {
		rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got := assetIDs(rc.ResolvedAssets[store.AssetStyle])
		want := []string{"style-grain", "style-neon"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})
}

func TestResolve_BlockDoesNotSuppressLocal(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelScene, "S1", "prop-sword", store.AssetProp, nil)
	db.addRef(hierarchy.LevelShot, "SH1", "prop-shield", store.AssetProp, nil)

	snap := snapshotOf(t, store.PropagationRule{
		RuleID:      "r-block",
		AssetType:   store.AssetProp,
		SourceLevel: hierarchy.LevelScene,
		TargetLevel: hierarchy.LevelShot,
		Mode:        store.ModeBlock,
	})
	r := New(db, snap)

	t.Run("blocking node keeps its own assignment", func(t *testing.T) {
		rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		props := rc.ResolvedAssets[store.AssetProp]
		if len(props) != 1 || props[0].AssetID != "prop-shield" {
			t.Fatalf("expected only prop-shield, got %v", assetIDs(props))
		}
	})

	t.Run("suppression persists below the block", func(t *testing.T) {
		rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelTake, "T1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rc.ResolvedAssets[store.AssetProp]) != 0 {
			t.Fatalf("expected no props at take, got %v", assetIDs(rc.ResolvedAssets[store.AssetProp]))
		}
	})
}

func TestResolve_SameAssetReplacedInPlace(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "char-hero", store.AssetCharacter, nil)
	db.addRef(hierarchy.LevelScene, "S1", "char-hero", store.AssetCharacter, map[string]any{"wardrobe": "armor"})

	rc, err := New(db, snapshotOf(t)).Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	chars := rc.ResolvedAssets[store.AssetCharacter]
	if len(chars) != 1 {
		t.Fatalf("expected single entry for repeated asset, got %v", assetIDs(chars))
	}
	got := chars[0]
	if got.SourceLevel != hierarchy.LevelScene || got.SourceID != "S1" {
		t.Fatalf("expected scene assignment to win, got source %s %s", got.SourceLevel, got.SourceID)
	}
	if !got.IsOverridden || got.OverrideData["wardrobe"] != "armor" {
		t.Fatalf("expected override data carried, got %+v", got)
	}
}

func TestResolve_ConditionalRule(t *testing.T) {
	db := fullTree()
	db.addNode(hierarchy.LevelShot, "SH2", "S1")
	db.addRef(hierarchy.LevelScene, "S1", "sfx-rain", store.AssetSFX, nil)

	blockOne := store.PropagationRule{
		RuleID:      "r-cond",
		AssetType:   store.AssetSFX,
		SourceLevel: hierarchy.LevelScene,
		TargetLevel: hierarchy.LevelShot,
		Mode:        store.ModeBlock,
		Conditions:  map[string]string{"level_id": "SH2"},
	}
	r := New(db, snapshotOf(t, blockOne))

	rc, err := r.Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rc.ResolvedAssets[store.AssetSFX]) != 1 {
		t.Fatalf("expected sfx inherited at SH1, got %v", rc.ResolvedAssets[store.AssetSFX])
	}

	rc, err = r.Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rc.ResolvedAssets[store.AssetSFX]) != 0 {
		t.Fatalf("expected sfx blocked at SH2, got %v", rc.ResolvedAssets[store.AssetSFX])
	}
}

func TestResolve_TypeFilter(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "char-hero", store.AssetCharacter, nil)
	db.addRef(hierarchy.LevelProject, "P1", "style-noir", store.AssetStyle, nil)

	rc, err := New(db, snapshotOf(t)).Resolve(context.Background(), "P1", hierarchy.LevelAct, "A1", store.AssetStyle)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rc.ResolvedAssets) != 1 || len(rc.ResolvedAssets[store.AssetStyle]) != 1 {
		t.Fatalf("expected only style entries, got %+v", rc.ResolvedAssets)
	}
	if rc.TotalAssets != 1 {
		t.Fatalf("expected total 1, got %d", rc.TotalAssets)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "char-hero", store.AssetCharacter, nil)
	db.addRef(hierarchy.LevelProject, "P1", "style-noir", store.AssetStyle, nil)
	db.addRef(hierarchy.LevelAct, "A1", "char-mentor", store.AssetCharacter, nil)
	db.addRef(hierarchy.LevelScene, "S1", "prop-sword", store.AssetProp, map[string]any{"finish": "worn"})

	snap := snapshotOf(t, store.PropagationRule{
		RuleID:      "r-merge",
		AssetType:   store.AssetCharacter,
		SourceLevel: hierarchy.LevelProject,
		TargetLevel: hierarchy.LevelAct,
		Mode:        store.ModeMerge,
	})
	r := New(db, snap)

	first, err := r.Resolve(context.Background(), "P1", hierarchy.LevelTake, "T1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := r.Resolve(context.Background(), "P1", hierarchy.LevelTake, "T1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolution is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestResolve_NodeNotFound(t *testing.T) {
	db := fullTree()
	_, err := New(db, snapshotOf(t)).Resolve(context.Background(), "P1", hierarchy.LevelShot, "SH-missing")
	var nf *hierarchy.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Level != hierarchy.LevelShot || nf.LevelID != "SH-missing" {
		t.Fatalf("unexpected error detail: %v", nf)
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	db := fullTree()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(db, snapshotOf(t)).Resolve(ctx, "P1", hierarchy.LevelTake, "T1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResolve_CallerConditions(t *testing.T) {
	db := fullTree()
	db.addRef(hierarchy.LevelProject, "P1", "music-theme", store.AssetMusic, nil)

	nightOnly := store.PropagationRule{
		RuleID:      "r-night",
		AssetType:   store.AssetMusic,
		SourceLevel: hierarchy.LevelProject,
		TargetLevel: hierarchy.LevelAct,
		Mode:        store.ModeBlock,
		Conditions:  map[string]string{"time_of_day": "night"},
	}
	snap := snapshotOf(t, nightOnly)

	rc, err := New(db, snap).Resolve(context.Background(), "P1", hierarchy.LevelAct, "A1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rc.ResolvedAssets[store.AssetMusic]) != 1 {
		t.Fatalf("expected music inherited without condition, got %v", rc.ResolvedAssets[store.AssetMusic])
	}

	night := New(db, snap, WithConditions(map[string]string{"time_of_day": "night"}))
	rc, err = night.Resolve(context.Background(), "P1", hierarchy.LevelAct, "A1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rc.ResolvedAssets[store.AssetMusic]) != 0 {
		t.Fatalf("expected music blocked under night condition, got %v", rc.ResolvedAssets[store.AssetMusic])
	}
}
