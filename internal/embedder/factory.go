package embedder

import (
	"os"
	"strconv"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the correct default embedding vector size for
// the given backend name. Callers that need to pre-configure a vector store
// (e.g. Qdrant collection creation) should use this rather than hardcoding a
// value. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// Config selects and configures an embedding backend. Provider is the
// closed discriminant: "ollama", "openai", or "azure". Unknown values fail
// at construction with a ConfigError, never at first use.
type Config struct {
	// Provider is the backend discriminant.
	Provider string
	// Model is the embedding model name; empty selects the backend default.
	Model string
	// Dimensions overrides the backend's default vector size.
	Dimensions int
	// APIKey authenticates against openai/azure backends.
	APIKey string
	// Endpoint overrides the backend's default API endpoint.
	Endpoint string
	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string
	// RPS throttles embedding requests; zero disables throttling.
	RPS float64
}

// New constructs a batching embedder client for the configured backend.
// Providers with no available backend capability (missing API key, unset
// endpoint) fail fast here with a ConfigError.
func New(cfg *Config) (*Batched, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewBatched(provider, &BatchedConfig{RPS: cfg.RPS}), nil
}

// newProvider resolves the discriminant to a concrete backend.
func newProvider(cfg *Config) (rag.Embedder, error) {
	switch cfg.Provider {
	case "", "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       host,
			Model:      model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "openai":
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
		})

	case "azure":
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		endpoint := cfg.Endpoint
		if endpoint != "" {
			endpoint += "/openai"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: apiVersion,
		})

	default:
		return nil, rag.NewConfigError("embedder", "unknown backend %q — valid values: ollama, openai, azure", cfg.Provider)
	}
}

// NewFromEnv constructs a batching embedder client from environment
// variables, with cascading defaults:
//
//  1. EMBEDDING_PROVIDER — backend discriminant (default: ollama)
//  2. EMBEDDING_MODEL — overrides the default model for the backend
//  3. EMBEDDING_API_KEY — falls back to OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//  4. EMBEDDING_ENDPOINT — falls back to OLLAMA_HOST / AZURE_OPENAI_ENDPOINT
//  5. EMBEDDING_DIMENSIONS — overrides the default dimensions
//  6. EMBEDDING_RPS — request throttle, requests/second (default: off)
func NewFromEnv() (*Batched, error) {
	return New(ConfigFromEnv())
}

// ConfigFromEnv resolves the embedder configuration from environment
// variables with the cascade documented on NewFromEnv.
func ConfigFromEnv() *Config {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	cfg := &Config{
		Provider:   backend,
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		RPS:        getEnvFloat("EMBEDDING_RPS", 0),
	}

	switch backend {
	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "azure":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		cfg.APIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
	}

	return cfg
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
