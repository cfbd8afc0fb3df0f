package app

import (
	"log/slog"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/dshills/ideactx-mcp/internal/config"
	"github.com/dshills/ideactx-mcp/internal/health"
	"github.com/dshills/ideactx-mcp/internal/httpapi"
	"github.com/dshills/ideactx-mcp/internal/indexer"
	"github.com/dshills/ideactx-mcp/internal/mcp"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/internal/searcher"
	"github.com/dshills/ideactx-mcp/internal/storage"
)

// StartTimeout bounds application start, which includes the health probe
const StartTimeout = 15 * time.Second

// Module combines all application modules
var Module = fx.Options(
	ConfigModule,
	StorageModule,
	BackendModule,
	SearchModule,
	ServerModule,
)

// Components holds the main components for command access
type Components struct {
	fx.In

	Settings *Settings
	Pipeline *pipeline.Pipeline
	Health   *health.Checker
	MCP      *mcp.Server
	HTTP     *httpapi.Server
	Store    storage.Storage    `optional:"true"`
	Indexer  *indexer.Indexer   `optional:"true"`
	Searcher *searcher.Searcher `optional:"true"`
}

// New creates an fx app over cfg; a nil cfg is read from the environment.
// fx events are logged at debug level
// through slog so stdout stays free for the MCP stdio transport.
func New(cfg *config.Config, opts ...fx.Option) *fx.App {
	options := []fx.Option{
		Module,
		fx.StartTimeout(StartTimeout),
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: slog.Default()}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		fx.Invoke(func(lc fx.Lifecycle, l *Lifecycle) {
			lc.Append(fx.Hook{
				OnStart: l.Start,
				OnStop:  l.Stop,
			})
		}),
	}
	if cfg != nil {
		options = append(options, fx.Supply(cfg))
	}
	return fx.New(append(options, opts...)...)
}
