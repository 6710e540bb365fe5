package vectorstore

import (
	"context"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// Config selects and configures a vector store backend. Backend is the
// closed discriminant: "memory" or "qdrant". Unknown values fail at
// construction with a ConfigError.
type Config struct {
	// Backend is the store discriminant.
	Backend string

	// Dimension is the vector size the store must accept.
	Dimension int

	// Qdrant holds qdrant-specific settings, ignored by other backends.
	Qdrant QdrantConfig
}

// New constructs the configured vector store. The connection is intended to
// be created once at process start and shared read-only thereafter.
func New(ctx context.Context, cfg *Config) (rag.VectorStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.Dimension)
	case "qdrant":
		q := cfg.Qdrant
		if q.VectorSize == 0 && cfg.Dimension > 0 {
			q.VectorSize = uint64(cfg.Dimension)
		}
		return NewQdrantStore(ctx, &q)
	default:
		return nil, rag.NewConfigError("vectorstore", "unknown backend %q — valid values: memory, qdrant", cfg.Backend)
	}
}
