package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/ideactx-mcp/internal/bridge"
	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/fixture"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/internal/rerank"
)

// Environment variables
const (
	EnvDBPath         = "IDEACTX_DB_PATH"
	EnvProjectRoot    = "IDEACTX_PROJECT_ROOT"
	EnvProjectRootAlt = "PETCLINIC_REPO_ROOT"
	EnvRulesFile      = "IDEACTX_RULES_FILE"
	EnvLogLevel       = "IDEACTX_LOG_LEVEL"
	EnvHTTPAddr       = "IDEACTX_HTTP_ADDR"
	EnvDisableVector  = "DISABLE_VECTOR"
	EnvDisableBridge  = "DISABLE_BRIDGE"
)

// Defaults
const (
	DefaultDBPath   = "~/.ideactx/index.db"
	DefaultHTTPAddr = "127.0.0.1:8765"
)

// ErrInvalidLogLevel is returned for unknown level names
var ErrInvalidLogLevel = errors.New("invalid log level")

// Config is the process configuration. Every field has an environment
// source; command-line flags are applied on top by the caller.
type Config struct {
	BridgeURL      string
	BridgeDisabled bool
	DBPath         string
	VectorDisabled bool
	Embedding      embedder.Config
	Rerank         rerank.Config
	FixtureEnabled bool
	FixturePath    string
	ProjectRoot    string
	RulesFile      string
	LogLevel       slog.Level
	HTTPAddr       string
	ExactTimeout   time.Duration
	VectorTimeout  time.Duration
}

// NewFromEnv reads the configuration from the environment
func NewFromEnv() (*Config, error) {
	level, err := ParseLogLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		return nil, err
	}

	dbPath, err := ExpandPath(firstEnv(EnvDBPath))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BridgeURL:      bridge.BaseURLFromEnv(),
		BridgeDisabled: os.Getenv(EnvDisableBridge) == "1",
		DBPath:         dbPath,
		VectorDisabled: os.Getenv(EnvDisableVector) == "1",
		Embedding:      embedder.ConfigFromEnv(),
		Rerank:         rerank.ConfigFromEnv(),
		FixtureEnabled: fixture.EnabledFromEnv(),
		FixturePath:    os.Getenv(fixture.EnvFixtureFile),
		ProjectRoot:    firstEnv(EnvProjectRoot, EnvProjectRootAlt),
		RulesFile:      os.Getenv(EnvRulesFile),
		LogLevel:       level,
		HTTPAddr:       firstEnv(EnvHTTPAddr),
		ExactTimeout:   pipeline.DefaultExactTimeout,
		VectorTimeout:  pipeline.DefaultVectorTimeout,
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden
func (c *Config) Validate() error {
	if !c.VectorDisabled && c.DBPath == "" {
		return fmt.Errorf("database path must be specified unless %s=1", EnvDisableVector)
	}
	if !c.BridgeDisabled && c.BridgeURL == "" {
		return fmt.Errorf("bridge URL must be specified unless %s=1", EnvDisableBridge)
	}
	if c.ProjectRoot != "" {
		info, err := os.Stat(c.ProjectRoot)
		if err != nil {
			return fmt.Errorf("project root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("project root %s is not a directory", c.ProjectRoot)
		}
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
// An empty name is info.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
}

// ExpandPath resolves a leading ~ to the home directory. An empty path
// selects DefaultDBPath.
func ExpandPath(path string) (string, error) {
	if path == "" {
		path = DefaultDBPath
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
