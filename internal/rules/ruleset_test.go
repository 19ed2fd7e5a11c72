package rules

import (
	"errors"
	"testing"
	"time"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

func rule(id string, assetType store.AssetType, source, target hierarchy.Level, mode store.PropagationMode, priority int, createdAt time.Time) store.PropagationRule {
	return store.PropagationRule{
		RuleID:      id,
		ProjectID:   "P1",
		AssetType:   assetType,
		SourceLevel: source,
		TargetLevel: target,
		Mode:        mode,
		Priority:    priority,
		Enabled:     true,
		CreatedAt:   createdAt,
	}
}

func TestFindRule(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("highest priority wins", func(t *testing.T) {
		snap := NewSnapshot([]store.PropagationRule{
			rule("r-low", store.AssetCharacter, hierarchy.LevelScene, hierarchy.LevelShot, store.ModeInherit, 1, base),
			rule("r-high", store.AssetCharacter, hierarchy.LevelScene, hierarchy.LevelShot, store.ModeOverride, 10, base),
		})
		got, ok, err := snap.FindRule(store.AssetCharacter, hierarchy.LevelScene, hierarchy.LevelShot, nil)
		if err != nil || !ok {
			t.Fatalf("expected match, got ok=%v err=%v", ok, err)
		}
		if got.RuleID != "r-high" {
			t.Fatalf("expected r-high, got %s", got.RuleID)
		}
	})

	t.Run("priority tie resolved by newest creation", func(t *testing.T) {
		snap := NewSnapshot([]store.PropagationRule{
			rule("r-old", store.AssetStyle, hierarchy.LevelProject, hierarchy.LevelAct, store.ModeInherit, 5, base),
			rule("r-new", store.AssetStyle, hierarchy.LevelProject, hierarchy.LevelAct, store.ModeMerge, 5, base.Add(time.Hour)),
		})
		got, ok, err := snap.FindRule(store.AssetStyle, hierarchy.LevelProject, hierarchy.LevelAct, nil)
		if err != nil || !ok {
			t.Fatalf("expected match, got ok=%v err=%v", ok, err)
		}
		if got.RuleID != "r-new" {
			t.Fatalf("expected r-new, got %s", got.RuleID)
		}
	})

	t.Run("full tie resolved by rule id", func(t *testing.T) {
		snap := NewSnapshot([]store.PropagationRule{
			rule("r-b", store.AssetProp, hierarchy.LevelShot, hierarchy.LevelTake, store.ModeBlock, 5, base),
			rule("r-a", store.AssetProp, hierarchy.LevelShot, hierarchy.LevelTake, store.ModeInherit, 5, base),
		})
		got, ok, err := snap.FindRule(store.AssetProp, hierarchy.LevelShot, hierarchy.LevelTake, nil)
		if err != nil || !ok {
			t.Fatalf("expected match, got ok=%v err=%v", ok, err)
		}
		if got.RuleID != "r-a" {
			t.Fatalf("expected r-a, got %s", got.RuleID)
		}
	})

	t.Run("disabled rules are ignored", func(t *testing.T) {
		disabled := rule("r-off", store.AssetMusic, hierarchy.LevelScene, hierarchy.LevelShot, store.ModeBlock, 100, base)
		disabled.Enabled = false
		snap := NewSnapshot([]store.PropagationRule{disabled})
		if snap.Len() != 0 {
			t.Fatalf("expected empty snapshot, got %d", snap.Len())
		}
		_, ok, err := snap.FindRule(store.AssetMusic, hierarchy.LevelScene, hierarchy.LevelShot, nil)
		if err != nil || ok {
			t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("conditions must all match", func(t *testing.T) {
		conditional := rule("r-cond", store.AssetSFX, hierarchy.LevelShot, hierarchy.LevelTake, store.ModeBlock, 10, base)
		conditional.Conditions = map[string]string{"level_id": "T1"}
		fallback := rule("r-any", store.AssetSFX, hierarchy.LevelShot, hierarchy.LevelTake, store.ModeInherit, 1, base)
		snap := NewSnapshot([]store.PropagationRule{conditional, fallback})

		got, ok, err := snap.FindRule(store.AssetSFX, hierarchy.LevelShot, hierarchy.LevelTake, map[string]string{"level_id": "T1"})
		if err != nil || !ok || got.RuleID != "r-cond" {
			t.Fatalf("expected r-cond, got %v ok=%v err=%v", got, ok, err)
		}

		got, ok, err = snap.FindRule(store.AssetSFX, hierarchy.LevelShot, hierarchy.LevelTake, map[string]string{"level_id": "T2"})
		if err != nil || !ok || got.RuleID != "r-any" {
			t.Fatalf("expected fallback r-any, got %v ok=%v err=%v", got, ok, err)
		}
	})

	t.Run("no rule for the transition", func(t *testing.T) {
		snap := NewSnapshot(nil)
		_, ok, err := snap.FindRule(store.AssetCharacter, hierarchy.LevelAct, hierarchy.LevelChapter, nil)
		if err != nil || ok {
			t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("strict mode reports ambiguous ties", func(t *testing.T) {
		snap := NewSnapshot([]store.PropagationRule{
			rule("r-1", store.AssetLocation, hierarchy.LevelScene, hierarchy.LevelShot, store.ModeOverride, 5, base),
			rule("r-2", store.AssetLocation, hierarchy.LevelScene, hierarchy.LevelShot, store.ModeBlock, 5, base),
		}, WithStrict(true))
		_, _, err := snap.FindRule(store.AssetLocation, hierarchy.LevelScene, hierarchy.LevelShot, nil)
		var ambiguous *AmbiguousRuleError
		if !errors.As(err, &ambiguous) {
			t.Fatalf("expected AmbiguousRuleError, got %v", err)
		}
		if len(ambiguous.RuleIDs) != 2 {
			t.Fatalf("expected two rule ids, got %v", ambiguous.RuleIDs)
		}
	})

	t.Run("strict mode ignores ties broken by conditions", func(t *testing.T) {
		conditional := rule("r-cond", store.AssetLocation, hierarchy.LevelScene, hierarchy.LevelShot, store.ModeBlock, 5, base)
		conditional.Conditions = map[string]string{"level_id": "SH9"}
		snap := NewSnapshot([]store.PropagationRule{
			rule("r-plain", store.AssetLocation, hierarchy.LevelScene, hierarchy.LevelShot, store.ModeOverride, 5, base),
			conditional,
		}, WithStrict(true))
		got, ok, err := snap.FindRule(store.AssetLocation, hierarchy.LevelScene, hierarchy.LevelShot, map[string]string{"level_id": "SH1"})
		if err != nil || !ok || got.RuleID != "r-plain" {
			t.Fatalf("expected r-plain, got %v ok=%v err=%v", got, ok, err)
		}
	})
}
