package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Providers
const (
	ProviderOllama = "ollama"
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// Provider defaults
const (
	DefaultOllamaHost   = "http://127.0.0.1:11434"
	DefaultOllamaModel  = "manutic/nomic-embed-code"
	DefaultJinaEndpoint = "https://api.jina.ai/v1/embeddings"
	DefaultJinaModel    = "jina-embeddings-v3"
	DefaultJinaTask     = "retrieval.query"
	DefaultOpenAIModel  = "text-embedding-3-small"
	DefaultLocalModel   = "char-hash-384"

	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	DefaultCacheSize = 10000
	DefaultBatchSize = 32
	MaxBatchSize     = 100

	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Environment variables
const (
	EnvProvider     = "EMBEDDING_PROVIDER"
	EnvModel        = "EMBED_MODEL"
	EnvModelAlt     = "IEC_EMBED_MODEL"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvHost         = "EMBEDDING_HOST"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvTaskQuery    = "EMBEDDING_TASK_QUERY"
)

// Config selects and parameterizes a provider
type Config struct {
	Provider string
	Model    string
	// Host is the Ollama host, or the Jina/OpenAI endpoint override
	Host      string
	APIKey    string
	Task      string
	CacheSize int
}

// ConfigFromEnv reads the embedding settings from the environment.
// Without EMBEDDING_PROVIDER the provider is detected with DetectProvider.
func ConfigFromEnv() Config {
	cfg := Config{
		Provider:  DetectProvider(),
		Model:     firstEnv(EnvModelAlt, EnvModel),
		Task:      os.Getenv(EnvTaskQuery),
		CacheSize: DefaultCacheSize,
	}
	switch cfg.Provider {
	case ProviderOllama:
		cfg.Host = firstEnv(EnvOllamaHost, EnvHost)
	case ProviderJina:
		cfg.Host = os.Getenv(EnvHost)
		cfg.APIKey = os.Getenv(EnvJinaAPIKey)
	case ProviderOpenAI:
		cfg.Host = os.Getenv(EnvHost)
		cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	return cfg
}

// NewFromEnv creates an embedder from ConfigFromEnv
func NewFromEnv() (Embedder, error) {
	return New(ConfigFromEnv())
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		return NewOllamaProvider(cfg.Host, cfg.Model, cache)
	case ProviderJina:
		task := cfg.Task
		if task == "" {
			task = DefaultJinaTask
		}
		return NewJinaProvider(cfg.APIKey, cfg.Host, cfg.Model, task, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Host, cfg.Model, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on the environment:
// EMBEDDING_PROVIDER, then an available API key, then Ollama when a host is
// configured, else local
func DetectProvider() string {
	if p := strings.ToLower(strings.TrimSpace(os.Getenv(EnvProvider))); p != "" {
		return p
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvOllamaHost) != "" {
		return ProviderOllama
	}
	return ProviderLocal
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
