package generation

import (
	"testing"
	"time"

	"setcraft/internal/hierarchy"
	"setcraft/internal/resolve"
	"setcraft/internal/store"
)

func TestFormat(t *testing.T) {
	rc := &resolve.ResolvedContext{
		ProjectID: "P1",
		Level:     hierarchy.LevelShot,
		LevelID:   "SH1",
		ResolvedAssets: map[store.AssetType][]store.AssetReference{
			store.AssetCharacter: {
				{
					AssetID:      "char-hero",
					AssetType:    store.AssetCharacter,
					Level:        hierarchy.LevelShot,
					LevelID:      "SH1",
					SourceLevel:  hierarchy.LevelProject,
					SourceID:     "P1",
					OverrideData: map[string]any{"wardrobe": "armor"},
					IsOverridden: true,
				},
			},
			store.AssetProp: {
				{
					AssetID:     "prop-sword",
					AssetType:   store.AssetProp,
					Level:       hierarchy.LevelShot,
					LevelID:     "SH1",
					SourceLevel: hierarchy.LevelShot,
					SourceID:    "SH1",
				},
			},
		},
		TotalAssets: 2,
		AssetTypeCounts: map[store.AssetType]int{
			store.AssetCharacter: 1,
			store.AssetProp:      1,
		},
	}

	before := time.Now().UTC()
	out := Format(rc)
	after := time.Now().UTC()

	if out.ProjectID != "P1" || out.Level != "shot" || out.LevelID != "SH1" {
		t.Fatalf("unexpected header: %+v", out)
	}
	if out.TotalAssets != 2 {
		t.Fatalf("expected total 2, got %d", out.TotalAssets)
	}
	if out.ResolvedAt.Before(before) || out.ResolvedAt.After(after) {
		t.Fatalf("resolved_at not stamped at conversion time: %v", out.ResolvedAt)
	}

	chars := out.Assets["character"]
	if len(chars) != 1 {
		t.Fatalf("expected one character, got %+v", out.Assets)
	}
	if chars[0].ID != "char-hero" || chars[0].Type != "character" {
		t.Fatalf("unexpected character: %+v", chars[0])
	}
	if chars[0].Context != "inherited from project P1" {
		t.Fatalf("unexpected provenance: %q", chars[0].Context)
	}
	if chars[0].OverrideData["wardrobe"] != "armor" {
		t.Fatalf("override data not carried: %+v", chars[0].OverrideData)
	}

	props := out.Assets["prop"]
	if len(props) != 1 {
		t.Fatalf("expected one prop, got %+v", out.Assets)
	}
	if props[0].Context != "assigned at shot SH1" {
		t.Fatalf("unexpected provenance: %q", props[0].Context)
	}
	if props[0].OverrideData != nil {
		t.Fatalf("expected empty override data to stay nil, got %+v", props[0].OverrideData)
	}
}

func TestFormat_EmptyContext(t *testing.T) {
	rc := &resolve.ResolvedContext{
		ProjectID:      "P1",
		Level:          hierarchy.LevelTake,
		LevelID:        "T1",
		ResolvedAssets: map[store.AssetType][]store.AssetReference{},
	}
	out := Format(rc)
	if out.TotalAssets != 0 || len(out.Assets) != 0 {
		t.Fatalf("expected empty output, got %+v", out)
	}
}
