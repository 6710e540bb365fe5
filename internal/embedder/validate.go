package embedder

import (
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If the configured embedding
// model matches any of these, a warning is emitted so the operator knows they
// may have misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks the embedding configuration before the pipeline runs.
// It returns a ConfigError if the configuration is clearly broken (openai or
// azure backend with no API key) and logs a warning if the model name looks
// like a chat model rather than an embedding model.
//
// This is a pre-flight check — call it before constructing the embedder or
// the vector store so operators get a clear error at startup rather than a
// cryptic failure during the first embed call.
func Validate(cfg *Config, log *slog.Logger) error {
	switch cfg.Provider {
	case "", "ollama":
		// Local backend, no credentials required.
	case "openai":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return rag.NewConfigError("embedder", "openai backend selected but no API key configured")
		}
	case "azure":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if key == "" {
			return rag.NewConfigError("embedder", "azure backend selected but no API key configured")
		}
		if cfg.Endpoint == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return rag.NewConfigError("embedder", "azure backend selected but no endpoint configured")
		}
	default:
		return rag.NewConfigError("embedder", "unknown backend %q — valid values: ollama, openai, azure", cfg.Provider)
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: configured model looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model such as nomic-embed-text or text-embedding-3-small"),
		)
	}

	return nil
}
