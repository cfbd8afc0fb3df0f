package app

import (
	"go.uber.org/fx"

	"github.com/dshills/ideactx-mcp/internal/config"
)

// ConfigParams carries optional command-line overrides. Empty values keep
// the environment setting.
type ConfigParams struct {
	fx.In

	Base        *config.Config `optional:"true"`
	DBPath      string         `name:"dbPath" optional:"true"`
	ProjectRoot string         `name:"projectRoot" optional:"true"`
	RulesFile   string         `name:"rulesFile" optional:"true"`
	HTTPAddr    string         `name:"httpAddr" optional:"true"`
}

// Settings is the validated configuration shared by every module
type Settings struct {
	*config.Config
}

// NewSettings reads the environment, applies overrides and validates
func NewSettings(params ConfigParams) (*Settings, error) {
	cfg := params.Base
	if cfg == nil {
		var err error
		if cfg, err = config.NewFromEnv(); err != nil {
			return nil, err
		}
	}

	if params.DBPath != "" {
		path, err := config.ExpandPath(params.DBPath)
		if err != nil {
			return nil, err
		}
		cfg.DBPath = path
	}
	if params.ProjectRoot != "" {
		cfg.ProjectRoot = params.ProjectRoot
	}
	if params.RulesFile != "" {
		cfg.RulesFile = params.RulesFile
	}
	if params.HTTPAddr != "" {
		cfg.HTTPAddr = params.HTTPAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Settings{Config: cfg}, nil
}

// ConfigModule provides the application settings
var ConfigModule = fx.Module("config",
	fx.Provide(NewSettings),
)
