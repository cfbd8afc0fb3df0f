package commands

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/dshills/ideactx-mcp/internal/app"
	"github.com/dshills/ideactx-mcp/internal/config"
)

// BuildInfo is stamped at link time
type BuildInfo struct {
	Version   string
	BuildTime string
}

// globalFlags override the environment for every command
type globalFlags struct {
	logLevel    string
	dbPath      string
	rulesFile   string
	projectRoot string
	noVector    bool
}

// NewRootCommand builds the ideactx command tree
func NewRootCommand(info BuildInfo) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "ideactx",
		Short:         "Staged Java code search over an IDE bridge and a local vector index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flags.logLevel)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default from "+config.EnvLogLevel+")")
	pf.StringVar(&flags.dbPath, "db", "", "vector index path (default from "+config.EnvDBPath+")")
	pf.StringVar(&flags.rulesFile, "rules", "", "YAML rules override file (default from "+config.EnvRulesFile+")")
	pf.StringVar(&flags.projectRoot, "project-root", "", "Java project root for source scanning (default from "+config.EnvProjectRoot+")")
	pf.BoolVar(&flags.noVector, "no-vector", false, "disable the vector stage, same as "+config.EnvDisableVector+"=1")

	root.AddCommand(
		newServeCommand(flags),
		newHTTPCommand(flags),
		newSearchCommand(flags),
		newIndexCommand(flags),
		newHealthCommand(flags),
		newEmbedCommand(flags),
		newVersionCommand(info),
	)
	return root
}

// setupLogging sends slog text output to stderr; stdout is reserved for the
// MCP stdio transport and command results
func setupLogging(flagLevel string) error {
	name := flagLevel
	if name == "" {
		name = os.Getenv(config.EnvLogLevel)
	}
	level, err := config.ParseLogLevel(name)
	if err != nil {
		return err
	}
	log.SetOutput(os.Stderr)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the environment and applies the global flags
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		if cfg.LogLevel, err = config.ParseLogLevel(f.logLevel); err != nil {
			return nil, err
		}
	}
	if f.noVector {
		cfg.VectorDisabled = true
	}
	return cfg, nil
}

// overrides supplies the path flags as named values for app.ConfigModule
func (f *globalFlags) overrides(httpAddr string) fx.Option {
	return fx.Supply(
		fx.Annotate(f.dbPath, fx.ResultTags(`name:"dbPath"`)),
		fx.Annotate(f.rulesFile, fx.ResultTags(`name:"rulesFile"`)),
		fx.Annotate(f.projectRoot, fx.ResultTags(`name:"projectRoot"`)),
		fx.Annotate(httpAddr, fx.ResultTags(`name:"httpAddr"`)),
	)
}

// startApp builds and starts the application graph. The returned stop
// function must be called when the command finishes.
func (f *globalFlags) startApp(ctx context.Context, httpAddr string) (*app.Components, func(), error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var comps app.Components
	fxApp := app.New(cfg, f.overrides(httpAddr), fx.Populate(&comps))
	if err := fxApp.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to build application: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to start application: %w", err)
	}

	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), fxApp.StopTimeout())
		defer cancel()
		if err := fxApp.Stop(stopCtx); err != nil {
			slog.Warn("application stop failed", slog.Any("error", err))
		}
	}
	return &comps, stop, nil
}

// withSignals returns a context cancelled on SIGINT or SIGTERM
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down gracefully", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
