package rerank

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables
const (
	EnvEnabled       = "RERANK_ENABLED"
	EnvProvider      = "RERANK_PROVIDER"
	EnvHost          = "RERANK_HOST"
	EnvModel         = "RERANK_MODEL"
	EnvAPIKey        = "RERANK_API_KEY"
	EnvMaxCandidates = "RERANK_MAX_CANDIDATES"
	EnvTopK          = "RERANK_TOP_K"
	EnvTimeoutMs     = "RERANK_TIMEOUT_MS"
	EnvRPS           = "RERANK_RPS"
	EnvLogProbes     = "RERANK_LOG_PROBES"
)

// Defaults
const (
	ProviderJina = "jina"

	DefaultHost          = "https://api.jina.ai/v1/rerank"
	DefaultModel         = "jina-reranker-v3-base"
	DefaultMaxCandidates = 40
	DefaultTopK          = 10
	DefaultTimeout       = 6000 * time.Millisecond
)

// Config controls the optional reranking pass
type Config struct {
	Enabled       bool
	Provider      string
	Host          string
	Model         string
	APIKey        string
	MaxCandidates int
	TopK          int
	Timeout       time.Duration
	// RPS limits outbound requests; <= 0 means unlimited
	RPS       float64
	LogProbes bool
}

// DefaultConfig returns a disabled configuration with default endpoint settings
func DefaultConfig() Config {
	return Config{
		Provider:      ProviderJina,
		Host:          DefaultHost,
		Model:         DefaultModel,
		MaxCandidates: DefaultMaxCandidates,
		TopK:          DefaultTopK,
		Timeout:       DefaultTimeout,
	}
}

// ConfigFromEnv reads RERANK_* variables over the defaults.
// Unparseable numbers keep their defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Enabled = os.Getenv(EnvEnabled) == "1"
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvProvider))); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	cfg.APIKey = os.Getenv(EnvAPIKey)
	if n, err := strconv.Atoi(os.Getenv(EnvMaxCandidates)); err == nil && n > 0 {
		cfg.MaxCandidates = n
	}
	if n, err := strconv.Atoi(os.Getenv(EnvTopK)); err == nil && n > 0 {
		cfg.TopK = n
	}
	if n, err := strconv.Atoi(os.Getenv(EnvTimeoutMs)); err == nil && n > 0 {
		cfg.Timeout = time.Duration(n) * time.Millisecond
	}
	if f, err := strconv.ParseFloat(os.Getenv(EnvRPS), 64); err == nil {
		cfg.RPS = f
	}
	cfg.LogProbes = os.Getenv(EnvLogProbes) == "1"
	return cfg
}
