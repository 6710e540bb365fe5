package engine

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/ragpipe-go/internal/assembler"
	"github.com/54b3r/ragpipe-go/internal/chunker"
	"github.com/54b3r/ragpipe-go/internal/embedder"
	"github.com/54b3r/ragpipe-go/internal/logging"
	"github.com/54b3r/ragpipe-go/internal/metrics"
	"github.com/54b3r/ragpipe-go/internal/provider"
	"github.com/54b3r/ragpipe-go/internal/store"
	"github.com/54b3r/ragpipe-go/internal/transform"
	"github.com/54b3r/ragpipe-go/internal/vectorstore"
)

// NewFromEnv constructs an Engine entirely from environment variables,
// with cascading defaults:
//
//	EMBEDDING_*                     — embedding backend (see embedder.NewFromEnv)
//	VECTOR_STORE_BACKEND            — memory | qdrant (default: memory)
//	VECTOR_DIMENSION                — vector size (default: embedder dimension)
//	QDRANT_HOST / QDRANT_PORT       — qdrant connection (default: localhost:6334)
//	QDRANT_COLLECTION               — collection name (default: ragpipe)
//	QDRANT_API_KEY / QDRANT_TLS     — qdrant auth
//	RAGPIPE_DOCUMENTS_DB            — sqlite path (default: ~/.ragpipe/documents.db)
//	CHUNK_STRATEGY / CHUNK_SIZE / CHUNK_OVERLAP / CHUNK_MIN_SIZE
//	RETRIEVAL_TOP_K                 — default result bound (default: 5)
//	RETRIEVAL_SIMILARITY_THRESHOLD  — minimum similarity score (default: 0)
//	QUERY_TRANSFORM                 — original | expanded | hyde | subquestion
//	RERANK_ENABLED                  — accepted but currently a pass-through slot
//	CONTEXT_MAX_TOKENS / CONTEXT_INCLUDE_CITATIONS / CONTEXT_CITATION_FORMAT
//	MODEL_PROVIDER + provider keys  — generator for hyde/subquestion transforms
func NewFromEnv(ctx context.Context) (*Engine, error) {
	log := logging.FromContext(ctx)

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err //nolint:wrapcheck // embedder errors carry their own prefix
	}

	dimension := envInt("VECTOR_DIMENSION", emb.Dimension())
	vectors, err := vectorstore.New(ctx, &vectorstore.Config{
		Backend:   os.Getenv("VECTOR_STORE_BACKEND"),
		Dimension: dimension,
		Qdrant: vectorstore.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       envInt("QDRANT_PORT", 0),
			Collection: envOrDefault("QDRANT_COLLECTION", "ragpipe"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     envBool("QDRANT_TLS"),
		},
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // vectorstore errors carry their own prefix
	}

	dbPath := os.Getenv("RAGPIPE_DOCUMENTS_DB")
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			vectors.Close()
			return nil, err //nolint:wrapcheck // store errors carry their own prefix
		}
	}
	documents, err := store.Open(dbPath)
	if err != nil {
		vectors.Close()
		return nil, err //nolint:wrapcheck // store errors carry their own prefix
	}

	kind := transform.Kind(os.Getenv("QUERY_TRANSFORM"))

	// Only generation-backed transforms need an LLM. A provider that cannot
	// be constructed degrades to the pass-through fallback rather than
	// failing startup.
	var gen transform.Generator
	if kind == transform.KindHyde || kind == transform.KindSubquestion {
		chatModel, perr := provider.NewFromEnv(ctx)
		if perr != nil {
			log.Warn("engine: no generation provider available, generation-backed transforms will fall back",
				slog.String("transform", string(kind)),
				slog.Any("error", perr),
			)
		} else {
			gen = provider.Generator(chatModel)
		}
	}

	if envBool("RERANK_ENABLED") {
		log.Warn("engine: rerank requested but no rerank model is bundled, using pass-through ordering",
			slog.String("rerank_model", os.Getenv("RERANK_MODEL")),
		)
	}

	e, err := New(&Config{
		Embedder:  emb,
		Vectors:   vectors,
		Documents: documents,
		Metrics:   metrics.New(newRegistry()),
		Generate:  gen,
		Retrieval: RetrievalDefaults{
			TopK:                envInt("RETRIEVAL_TOP_K", 5),
			SimilarityThreshold: envFloat32("RETRIEVAL_SIMILARITY_THRESHOLD", 0),
			Transform:           kind,
		},
		Assembly: assembler.Options{
			MaxContextTokens: envInt("CONTEXT_MAX_TOKENS", 0),
			IncludeCitations: envBool("CONTEXT_INCLUDE_CITATIONS"),
			Format:           assembler.CitationFormat(os.Getenv("CONTEXT_CITATION_FORMAT")),
		},
		Chunking: chunker.Options{
			Strategy:     chunker.Strategy(os.Getenv("CHUNK_STRATEGY")),
			ChunkSize:    envInt("CHUNK_SIZE", 0),
			ChunkOverlap: envInt("CHUNK_OVERLAP", 0),
			MinChunkSize: envInt("CHUNK_MIN_SIZE", 0),
		},
		BatchSize: envInt("INGEST_BATCH_SIZE", 0),
	})
	if err != nil {
		vectors.Close()
		documents.Close()
		return nil, err
	}
	return e, nil
}

// envOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt parses the named environment variable as an int, returning
// fallback on absence or parse failure.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envFloat32 parses the named environment variable as a float32, returning
// fallback on absence or parse failure.
func envFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// envBool reports whether the named environment variable is set to a truthy
// value ("true", "1", "yes").
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
