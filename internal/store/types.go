package store

import (
	"fmt"
	"time"

	"setcraft/internal/hierarchy"
)

// AssetType is the closed set of creative asset categories a production
// tracks.
type AssetType string

const (
	AssetCharacter   AssetType = "character"
	AssetStyle       AssetType = "style"
	AssetLocation    AssetType = "location"
	AssetProp        AssetType = "prop"
	AssetWardrobe    AssetType = "wardrobe"
	AssetVehicle     AssetType = "vehicle"
	AssetSetDressing AssetType = "set_dressing"
	AssetSFX         AssetType = "sfx"
	AssetSound       AssetType = "sound"
	AssetMusic       AssetType = "music"
)

var assetTypes = []AssetType{
	AssetCharacter,
	AssetStyle,
	AssetLocation,
	AssetProp,
	AssetWardrobe,
	AssetVehicle,
	AssetSetDressing,
	AssetSFX,
	AssetSound,
	AssetMusic,
}

func AssetTypes() []AssetType {
	out := make([]AssetType, len(assetTypes))
	copy(out, assetTypes)
	return out
}

func ParseAssetType(s string) (AssetType, error) {
	for _, at := range assetTypes {
		if string(at) == s {
			return at, nil
		}
	}
	return "", fmt.Errorf("unknown asset type: %q", s)
}

// PropagationMode controls how an asset type flows across one hierarchy
// transition.
type PropagationMode string

const (
	ModeInherit  PropagationMode = "inherit"
	ModeOverride PropagationMode = "override"
	ModeMerge    PropagationMode = "merge"
	ModeBlock    PropagationMode = "block"
)

func ParseMode(s string) (PropagationMode, error) {
	switch PropagationMode(s) {
	case ModeInherit, ModeOverride, ModeMerge, ModeBlock:
		return PropagationMode(s), nil
	}
	return "", fmt.Errorf("unknown propagation mode: %q", s)
}

// AssetReference records one asset's presence at one hierarchy node. The
// store only holds local assignments, where the source node equals the node
// the reference is stored at; the resolver synthesizes transient copies with
// rewritten node fields to represent inherited results.
type AssetReference struct {
	ID           string
	ProjectID    string
	AssetID      string
	AssetType    AssetType
	Level        hierarchy.Level
	LevelID      string
	SourceLevel  hierarchy.Level
	SourceID     string
	OverrideData map[string]any
	IsOverridden bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AssetReferenceInput struct {
	ProjectID    string
	AssetID      string
	AssetType    AssetType
	Level        hierarchy.Level
	LevelID      string
	OverrideData map[string]any
}

func (in AssetReferenceInput) Validate() error {
	if in.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if in.AssetID == "" {
		return fmt.Errorf("asset id is required")
	}
	if _, err := ParseAssetType(string(in.AssetType)); err != nil {
		return err
	}
	if !in.Level.Valid() {
		return fmt.Errorf("unknown hierarchy level: %q", in.Level)
	}
	if in.LevelID == "" {
		return fmt.Errorf("level id is required")
	}
	return nil
}

// PropagationRule declares how one asset type flows from a source level to
// a target level. Conditions are matched by exact key/value equality against
// the resolution context; an empty map always applies.
type PropagationRule struct {
	RuleID      string
	ProjectID   string
	AssetType   AssetType
	SourceLevel hierarchy.Level
	TargetLevel hierarchy.Level
	Mode        PropagationMode
	Conditions  map[string]string
	Priority    int
	Enabled     bool
	CreatedAt   time.Time
}

type RuleInput struct {
	ProjectID   string
	AssetType   AssetType
	SourceLevel hierarchy.Level
	TargetLevel hierarchy.Level
	Mode        PropagationMode
	Conditions  map[string]string
	Priority    int
	Enabled     bool
}

func (in RuleInput) Validate() error {
	if in.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if _, err := ParseAssetType(string(in.AssetType)); err != nil {
		return err
	}
	if !in.SourceLevel.Valid() {
		return fmt.Errorf("unknown source level: %q", in.SourceLevel)
	}
	if !in.TargetLevel.Valid() {
		return fmt.Errorf("unknown target level: %q", in.TargetLevel)
	}
	if !hierarchy.IsAncestor(in.SourceLevel, in.TargetLevel) {
		return fmt.Errorf("source level %s must be an ancestor of target level %s", in.SourceLevel, in.TargetLevel)
	}
	if _, err := ParseMode(string(in.Mode)); err != nil {
		return err
	}
	return nil
}

// Node is one hierarchy linkage record. ParentID is empty only for the
// project root.
type Node struct {
	ProjectID string
	Level     hierarchy.Level
	LevelID   string
	ParentID  string
	Name      string
	CreatedAt time.Time
}

type NodeInput struct {
	ProjectID string
	Level     hierarchy.Level
	LevelID   string
	ParentID  string
	Name      string
}

func (in NodeInput) Validate() error {
	if in.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if !in.Level.Valid() {
		return fmt.Errorf("unknown hierarchy level: %q", in.Level)
	}
	if in.LevelID == "" {
		return fmt.Errorf("level id is required")
	}
	if in.Level == hierarchy.LevelProject {
		if in.ParentID != "" {
			return fmt.Errorf("project root cannot have a parent")
		}
		if in.LevelID != in.ProjectID {
			return fmt.Errorf("project root level id must equal the project id")
		}
		return nil
	}
	if in.ParentID == "" {
		return fmt.Errorf("parent id is required for level %s", in.Level)
	}
	return nil
}
