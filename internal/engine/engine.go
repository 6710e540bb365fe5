// Package engine wires the full retrieval pipeline into a process-wide
// context object: embedder, vector store, document store, retriever,
// ingestion pipeline, and metrics, constructed once at startup with an
// explicit init/shutdown lifecycle. Handlers and CLI commands hold a
// reference to the Engine instead of reaching for global state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragpipe-go/internal/assembler"
	"github.com/54b3r/ragpipe-go/internal/chunker"
	"github.com/54b3r/ragpipe-go/internal/embedder"
	"github.com/54b3r/ragpipe-go/internal/ingestion"
	"github.com/54b3r/ragpipe-go/internal/logging"
	"github.com/54b3r/ragpipe-go/internal/metrics"
	"github.com/54b3r/ragpipe-go/internal/rag"
	"github.com/54b3r/ragpipe-go/internal/retriever"
	"github.com/54b3r/ragpipe-go/internal/store"
	"github.com/54b3r/ragpipe-go/internal/transform"
)

// RetrievalDefaults are the per-engine retrieval settings applied when a
// query does not override them.
type RetrievalDefaults struct {
	// TopK bounds the number of retrieved chunks. Defaults to 5.
	TopK int

	// SimilarityThreshold drops hits scoring below it. Zero keeps all hits.
	SimilarityThreshold float32

	// Transform is the default query transformation.
	Transform transform.Kind
}

// Config holds the dependencies and defaults required to construct an Engine.
type Config struct {
	// Embedder is the batching embedding client shared by ingestion and
	// retrieval.
	Embedder *embedder.Batched

	// Vectors is the vector store backend.
	Vectors rag.VectorStore

	// Documents is the document/chunk metadata store.
	Documents store.DocumentStore

	// Metrics records pipeline metrics. May be nil to disable.
	Metrics *metrics.Metrics

	// Generate backs the hyde/subquestion query transforms. May be nil;
	// those transforms then fall back to the original query.
	Generate transform.Generator

	// Reranker reorders threshold-filtered hits. Nil selects the stable
	// no-op.
	Reranker rag.Reranker

	// Retrieval holds the engine-wide retrieval defaults.
	Retrieval RetrievalDefaults

	// Assembly holds the engine-wide context assembly defaults.
	Assembly assembler.Options

	// Chunking holds the default chunking options for ingestion.
	Chunking chunker.Options

	// BatchSize is the embedding batch size for ingestion. Zero uses the
	// pipeline default.
	BatchSize int
}

// Engine is the process-wide pipeline context. Construct it once with New
// or NewFromEnv, share it across handlers, and Close it at shutdown.
type Engine struct {
	embedder  *embedder.Batched
	vectors   rag.VectorStore
	documents store.DocumentStore
	metrics   *metrics.Metrics
	generate  transform.Generator

	retriever *retriever.Retriever
	pipeline  *ingestion.Pipeline

	retrieval RetrievalDefaults
	assembly  assembler.Options
}

// New constructs an Engine from explicit dependencies.
func New(cfg *Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("engine: embedder must not be nil")
	}
	if cfg.Vectors == nil {
		return nil, fmt.Errorf("engine: vector store must not be nil")
	}
	if cfg.Documents == nil {
		return nil, fmt.Errorf("engine: document store must not be nil")
	}

	ret := cfg.Retrieval
	if ret.TopK <= 0 {
		ret.TopK = 5
	}

	r, err := retriever.New(cfg.Embedder, cfg.Vectors, cfg.Reranker, ret.TopK)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	p, err := ingestion.NewPipeline(cfg.Embedder, cfg.Vectors, cfg.Documents, cfg.Metrics, &ingestion.Config{
		BatchSize: cfg.BatchSize,
		Chunking:  cfg.Chunking,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{
		embedder:  cfg.Embedder,
		vectors:   cfg.Vectors,
		documents: cfg.Documents,
		metrics:   cfg.Metrics,
		generate:  cfg.Generate,
		retriever: r,
		pipeline:  p,
		retrieval: ret,
		assembly:  cfg.Assembly,
	}, nil
}

// QueryOptions controls a single Query call.
type QueryOptions struct {
	// Query is the raw user query.
	Query string

	// UserID scopes retrieval to one tenant.
	UserID string

	// DocumentIDs optionally restricts retrieval to specific documents.
	DocumentIDs []string

	// TopK overrides the engine's default result bound when positive.
	TopK int

	// SimilarityThreshold overrides the engine default when positive.
	SimilarityThreshold float32

	// DisableRag skips retrieval entirely and assembles an empty context.
	// The zero value keeps retrieval on.
	DisableRag bool

	// Transform overrides the engine's default query transformation.
	Transform transform.Kind

	// SystemPrompt overrides the built-in prompt template.
	SystemPrompt string

	// Generate overrides the engine's generator for this call.
	Generate transform.Generator
}

// QueryResult is the output of a Query call: the assembled context plus the
// transform outcome that drove retrieval.
type QueryResult struct {
	// Context is the assembled prompt artifact.
	Context *rag.Context

	// TransformedQuery reports the transformation applied to the query,
	// including the explicit fallback flag for degraded generation-backed
	// transforms.
	TransformedQuery *transform.Result
}

// Query runs the full query pipeline: transform, retrieve, assemble.
// Retrieval failures do not abort the call — the engine logs the error and
// assembles an empty context so the caller's request still proceeds.
func (e *Engine) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("engine: query must not be empty")
	}

	assembly := e.assembly
	if opts.SystemPrompt != "" {
		assembly.SystemPrompt = opts.SystemPrompt
	}

	if opts.DisableRag {
		empty := &rag.RetrievalResult{Query: opts.Query}
		return &QueryResult{
			Context:          assembler.BuildContext(empty, assembly),
			TransformedQuery: &transform.Result{Query: opts.Query, Kind: transform.KindOriginal},
		}, nil
	}

	result, tr, err := e.retrieve(ctx, opts)
	if err != nil {
		// Retrieval failure falls back to a no-context prompt.
		logging.FromContext(ctx).Warn("engine: retrieval failed, continuing without context",
			slog.Any("error", err),
		)
		result = &rag.RetrievalResult{Query: opts.Query}
		tr = &transform.Result{Query: opts.Query, Kind: transform.KindOriginal}
	}

	return &QueryResult{
		Context:          assembler.BuildContext(result, assembly),
		TransformedQuery: tr,
	}, nil
}

// RetrieveResult is the output of a retrieve-only call.
type RetrieveResult struct {
	// Chunks are the ranked hits.
	Chunks []rag.SearchResult

	// Citations record the provenance of every chunk.
	Citations []rag.Citation

	// TransformedQuery reports the transformation applied to the query.
	TransformedQuery *transform.Result
}

// Retrieve runs retrieval without context assembly, returning the ranked
// chunks and their citations. Unlike Query, retrieval errors propagate.
func (e *Engine) Retrieve(ctx context.Context, opts QueryOptions) (*RetrieveResult, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("engine: query must not be empty")
	}

	result, tr, err := e.retrieve(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &RetrieveResult{
		Chunks:           result.Chunks,
		Citations:        retriever.Citations(result.Chunks),
		TransformedQuery: tr,
	}, nil
}

// retrieve applies the engine defaults and records retrieval metrics.
func (e *Engine) retrieve(ctx context.Context, opts QueryOptions) (*rag.RetrievalResult, *transform.Result, error) {
	kind := opts.Transform
	if kind == "" {
		kind = e.retrieval.Transform
	}
	gen := opts.Generate
	if gen == nil {
		gen = e.generate
	}
	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = e.retrieval.SimilarityThreshold
	}

	start := time.Now()
	result, tr, err := e.retriever.Retrieve(ctx, retriever.Options{
		Query:               opts.Query,
		UserID:              opts.UserID,
		DocumentIDs:         opts.DocumentIDs,
		TopK:                opts.TopK,
		SimilarityThreshold: threshold,
		Transform:           kind,
		Generate:            gen,
	})
	if err != nil {
		e.observeRetrieval(metrics.OutcomeError, 0, time.Since(start))
		return nil, nil, err
	}

	e.observeRetrieval(metrics.OutcomeOK, len(result.Chunks), time.Since(start))
	return result, tr, nil
}

func (e *Engine) observeRetrieval(outcome string, chunks int, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveRetrieval(outcome, chunks, d)
}

// Ingest runs the ingestion pipeline for one source.
func (e *Engine) Ingest(ctx context.Context, src ingestion.Source, userID string, opts ingestion.Options) (*ingestion.Result, error) {
	return e.pipeline.Ingest(ctx, src, userID, opts) //nolint:wrapcheck // pipeline errors carry their own prefix
}

// Reprocess re-ingests a stored document, replacing its chunks and vectors.
func (e *Engine) Reprocess(ctx context.Context, documentID, userID string, opts ingestion.Options) (*ingestion.Result, error) {
	return e.pipeline.Reprocess(ctx, documentID, userID, opts) //nolint:wrapcheck // pipeline errors carry their own prefix
}

// Delete removes a document and all of its chunks from both stores.
func (e *Engine) Delete(ctx context.Context, documentID string) error {
	return e.pipeline.Delete(ctx, documentID) //nolint:wrapcheck // pipeline errors carry their own prefix
}

// Documents exposes the document metadata store.
func (e *Engine) Documents() store.DocumentStore {
	return e.documents
}

// Stats reports vector store totals.
func (e *Engine) Stats(ctx context.Context) (rag.StoreStats, error) {
	stats, err := e.vectors.Stats(ctx)
	if err != nil {
		return rag.StoreStats{}, fmt.Errorf("engine: stats: %w", err)
	}
	return stats, nil
}

// Close releases the engine's store connections.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.vectors.Close(); err != nil {
		firstErr = fmt.Errorf("engine: closing vector store: %w", err)
	}
	if err := e.documents.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("engine: closing document store: %w", err)
	}
	return firstErr
}

// newRegistry returns a fresh metrics registry for engines constructed from
// the environment.
func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
