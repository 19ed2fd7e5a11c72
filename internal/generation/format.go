// Package generation flattens resolved contexts into the shape generation
// back ends consume. It contains no resolution logic.
package generation

import (
	"fmt"
	"time"

	"setcraft/internal/hierarchy"
	"setcraft/internal/resolve"
)

// Asset is one effective asset in the flat generation shape.
type Asset struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	OverrideData map[string]any `json:"override_data,omitempty"`
	Context      string         `json:"context"`
}

// Context is the generation back end's view of one resolved node.
type Context struct {
	ProjectID   string             `json:"project_id"`
	Level       string             `json:"level"`
	LevelID     string             `json:"level_id"`
	ResolvedAt  time.Time          `json:"resolved_at"`
	TotalAssets int                `json:"total_assets"`
	Assets      map[string][]Asset `json:"assets"`
}

// Format converts a resolved context into the flat generation shape,
// stamping the conversion time.
func Format(rc *resolve.ResolvedContext) *Context {
	out := &Context{
		ProjectID:   rc.ProjectID,
		Level:       string(rc.Level),
		LevelID:     rc.LevelID,
		ResolvedAt:  time.Now().UTC(),
		TotalAssets: rc.TotalAssets,
		Assets:      make(map[string][]Asset, len(rc.ResolvedAssets)),
	}
	for at, entries := range rc.ResolvedAssets {
		assets := make([]Asset, 0, len(entries))
		for _, entry := range entries {
			assets = append(assets, Asset{
				ID:           entry.AssetID,
				Type:         string(entry.AssetType),
				OverrideData: entry.OverrideData,
				Context:      provenance(rc, entry.SourceLevel, entry.SourceID),
			})
		}
		out.Assets[string(at)] = assets
	}
	return out
}

func provenance(rc *resolve.ResolvedContext, sourceLevel hierarchy.Level, sourceID string) string {
	if sourceLevel == rc.Level && sourceID == rc.LevelID {
		return fmt.Sprintf("assigned at %s %s", sourceLevel, sourceID)
	}
	return fmt.Sprintf("inherited from %s %s", sourceLevel, sourceID)
}
