package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

// RuleFile is the declarative seed rule set for a project, importable into
// the store with `setcraft rule import`.
type RuleFile struct {
	Version int        `yaml:"version"`
	Rules   []RuleSpec `yaml:"rules"`
}

type RuleSpec struct {
	AssetType   string            `yaml:"asset_type"`
	SourceLevel string            `yaml:"source_level"`
	TargetLevel string            `yaml:"target_level"`
	Mode        string            `yaml:"mode"`
	Conditions  map[string]string `yaml:"conditions"`
	Priority    int               `yaml:"priority"`
	Enabled     *bool             `yaml:"enabled"`
}

// LoadRuleFile parses and validates a rule file, returning store-ready
// inputs for the given project. Rules default to enabled.
func LoadRuleFile(path, projectID string) ([]store.RuleInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading rule file: %w", err)
	}

	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("loading rule file: %w", err)
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("loading rule file: unsupported version: %d", file.Version)
	}

	inputs := make([]store.RuleInput, 0, len(file.Rules))
	for i, spec := range file.Rules {
		in, err := ruleInputFromSpec(spec, projectID)
		if err != nil {
			return nil, fmt.Errorf("loading rule file: rule %d: %w", i, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func ruleInputFromSpec(spec RuleSpec, projectID string) (store.RuleInput, error) {
	assetType, err := store.ParseAssetType(spec.AssetType)
	if err != nil {
		return store.RuleInput{}, err
	}
	sourceLevel, err := hierarchy.ParseLevel(spec.SourceLevel)
	if err != nil {
		return store.RuleInput{}, err
	}
	targetLevel, err := hierarchy.ParseLevel(spec.TargetLevel)
	if err != nil {
		return store.RuleInput{}, err
	}
	mode, err := store.ParseMode(spec.Mode)
	if err != nil {
		return store.RuleInput{}, err
	}

	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}

	in := store.RuleInput{
		ProjectID:   projectID,
		AssetType:   assetType,
		SourceLevel: sourceLevel,
		TargetLevel: targetLevel,
		Mode:        mode,
		Conditions:  spec.Conditions,
		Priority:    spec.Priority,
		Enabled:     enabled,
	}
	if err := in.Validate(); err != nil {
		return store.RuleInput{}, err
	}
	return in, nil
}
