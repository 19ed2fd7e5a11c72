package store

import (
	"context"

	"setcraft/internal/hierarchy"
)

// Store is the persistence collaborator the engine reads and writes through.
// List methods must return rows in stable creation order (created_at, then
// primary key): resolution ordering is defined in terms of that order.
type Store interface {
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	CreateNode(ctx context.Context, in NodeInput) (*Node, error)
	GetNode(ctx context.Context, projectID string, level hierarchy.Level, levelID string) (*Node, error)
	ListChildren(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]Node, error)
	ListNodes(ctx context.Context, projectID string) ([]Node, error)

	UpsertAssetRef(ctx context.Context, in AssetReferenceInput) (*AssetReference, error)
	ListAssetRefs(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]AssetReference, error)
	ListProjectAssetRefs(ctx context.Context, projectID string) ([]AssetReference, error)
	DeleteAssetRef(ctx context.Context, projectID string, level hierarchy.Level, levelID, assetID string, assetType AssetType) error

	CreateRule(ctx context.Context, in RuleInput) (*PropagationRule, error)
	ListRules(ctx context.Context, projectID string) ([]PropagationRule, error)
	ListEnabledRules(ctx context.Context, projectID string) ([]PropagationRule, error)
	SetRuleEnabled(ctx context.Context, projectID, ruleID string, enabled bool) error
}
