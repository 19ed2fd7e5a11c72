package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"setcraft/internal/hierarchy"
	"setcraft/internal/store"
)

// Store is the persistence surface the MCP tools need.
type Store interface {
	GetNode(ctx context.Context, projectID string, level hierarchy.Level, levelID string) (*store.Node, error)
	ListChildren(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]store.Node, error)
	ListAssetRefs(ctx context.Context, projectID string, level hierarchy.Level, levelID string) ([]store.AssetReference, error)
	ListProjectAssetRefs(ctx context.Context, projectID string) ([]store.AssetReference, error)
	UpsertAssetRef(ctx context.Context, in store.AssetReferenceInput) (*store.AssetReference, error)
	CreateRule(ctx context.Context, in store.RuleInput) (*store.PropagationRule, error)
	ListRules(ctx context.Context, projectID string) ([]store.PropagationRule, error)
	ListEnabledRules(ctx context.Context, projectID string) ([]store.PropagationRule, error)
}

type Server struct {
	projectID string
	strict    bool
	db        Store
	mcp       *sdk.Server
}

func NewServer(projectID string, strict bool, db Store, version string) *Server {
	s := &Server{
		projectID: projectID,
		strict:    strict,
		db:        db,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "setcraft",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
