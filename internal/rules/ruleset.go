// Package rules selects the governing propagation rule for one hierarchy
// transition from an immutable snapshot of a project's enabled rules.
package rules

import (
	"fmt"
	"sort"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

// AmbiguousRuleError is returned by strict snapshots when two enabled rules
// tie on priority for the same transition and both match the resolution
// context.
type AmbiguousRuleError struct {
	AssetType   store.AssetType
	SourceLevel hierarchy.Level
	TargetLevel hierarchy.Level
	Priority    int
	RuleIDs     []string
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf("ambiguous rules for %s %s->%s at priority %d: %v",
		e.AssetType, e.SourceLevel, e.TargetLevel, e.Priority, e.RuleIDs)
}

type transition struct {
	assetType store.AssetType
	source    hierarchy.Level
	target    hierarchy.Level
}

// Snapshot is an immutable view of the enabled rules for one project. A
// single snapshot must be used for the whole of one resolution call; rule
// edits happen by building a new snapshot.
type Snapshot struct {
	byTransition map[transition][]store.PropagationRule
	strict       bool
	total        int
}

type Option func(*Snapshot)

// WithStrict makes FindRule surface priority ties as AmbiguousRuleError
// instead of resolving them by creation time.
func WithStrict(strict bool) Option {
	return func(s *Snapshot) { s.strict = strict }
}

// NewSnapshot indexes the enabled subset of ruleList. Within each
// (assetType, sourceLevel, targetLevel) bucket rules are ordered by
// descending priority, then most recent creation, then ruleId, so the first
// condition-matching rule is the governing one.
func NewSnapshot(ruleList []store.PropagationRule, opts ...Option) *Snapshot {
	s := &Snapshot{byTransition: make(map[transition][]store.PropagationRule)}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range ruleList {
		if !r.Enabled {
			continue
		}
		key := transition{assetType: r.AssetType, source: r.SourceLevel, target: r.TargetLevel}
		s.byTransition[key] = append(s.byTransition[key], r)
		s.total++
	}
	for _, bucket := range s.byTransition {
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].Priority != bucket[j].Priority {
				return bucket[i].Priority > bucket[j].Priority
			}
			if !bucket[i].CreatedAt.Equal(bucket[j].CreatedAt) {
				return bucket[i].CreatedAt.After(bucket[j].CreatedAt)
			}
			return bucket[i].RuleID < bucket[j].RuleID
		})
	}
	return s
}

// Len reports the number of enabled rules in the snapshot.
func (s *Snapshot) Len() int {
	return s.total
}

// FindRule returns the single governing enabled rule for the given asset
// type and transition, or ok=false when none matches. Conditions are
// evaluated against condCtx by exact value equality per key. In strict mode
// an AmbiguousRuleError is returned when the winning priority is shared by
// more than one matching rule.
func (s *Snapshot) FindRule(assetType store.AssetType, sourceLevel, targetLevel hierarchy.Level, condCtx map[string]string) (*store.PropagationRule, bool, error) {
	bucket := s.byTransition[transition{assetType: assetType, source: sourceLevel, target: targetLevel}]
	for i := range bucket {
		if !conditionsMatch(bucket[i].Conditions, condCtx) {
			continue
		}
		if s.strict {
			ambiguous := []string{bucket[i].RuleID}
			for j := i + 1; j < len(bucket) && bucket[j].Priority == bucket[i].Priority; j++ {
				if conditionsMatch(bucket[j].Conditions, condCtx) {
					ambiguous = append(ambiguous, bucket[j].RuleID)
				}
			}
			if len(ambiguous) > 1 {
				return nil, false, &AmbiguousRuleError{
					AssetType:   assetType,
					SourceLevel: sourceLevel,
					TargetLevel: targetLevel,
					Priority:    bucket[i].Priority,
					RuleIDs:     ambiguous,
				}
			}
		}
		rule := bucket[i]
		return &rule, true, nil
	}
	return nil, false, nil
}

func conditionsMatch(conditions, condCtx map[string]string) bool {
	for key, want := range conditions {
		got, ok := condCtx[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
