package app

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/dshills/ideactx-mcp/internal/bridge"
	"github.com/dshills/ideactx-mcp/internal/fixture"
	"github.com/dshills/ideactx-mcp/internal/profile"
	"github.com/dshills/ideactx-mcp/internal/rerank"
)

// NewBridge creates the IDE bridge client, or nil when DISABLE_BRIDGE=1
func NewBridge(settings *Settings) (*bridge.Client, error) {
	if settings.BridgeDisabled {
		slog.Info("ide bridge disabled")
		return nil, nil
	}
	return bridge.New(settings.BridgeURL, bridge.WithTimeout(settings.ExactTimeout))
}

// NewReranker creates the reranker; nil means reranking is off
func NewReranker(settings *Settings) *rerank.Reranker {
	return rerank.New(settings.Rerank)
}

// NewFixtures loads the fixture registry when fixture replay is enabled
func NewFixtures(settings *Settings) (*fixture.Registry, error) {
	return fixture.Open(settings.FixtureEnabled, settings.FixturePath)
}

// NewRegistry loads the profile registry, merging the rules override file
// over the embedded defaults
func NewRegistry(settings *Settings) (*profile.Registry, error) {
	return profile.Load(settings.RulesFile)
}

// BackendModule provides the remote backends and static registries
var BackendModule = fx.Module("backends",
	fx.Provide(
		NewBridge,
		NewReranker,
		NewFixtures,
		NewRegistry,
	),
)
