// Package ingestion implements the document ingestion pipeline: parse the
// source into plain text, chunk it, embed the chunks in fixed-size batches,
// and upsert the embedded records into the vector store while tracking the
// document's lifecycle in the metadata store.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragpipe-go/internal/chunker"
	"github.com/54b3r/ragpipe-go/internal/embedder"
	"github.com/54b3r/ragpipe-go/internal/logging"
	"github.com/54b3r/ragpipe-go/internal/metrics"
	"github.com/54b3r/ragpipe-go/internal/parser"
	"github.com/54b3r/ragpipe-go/internal/rag"
	"github.com/54b3r/ragpipe-go/internal/store"
)

// Embedder is the embedding client consumed by the pipeline. EmbedAll
// returns per-batch errors instead of failing wholesale, so a transient
// provider failure costs only the affected batch.
type Embedder interface {
	EmbedAll(ctx context.Context, texts []string) ([]rag.Embedding, []embedder.BatchError)
	Dimension() int
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of chunks embedded and upserted per batch.
	// Defaults to 100 if zero.
	BatchSize int

	// Chunking is the default chunking configuration. Per-call options
	// override it.
	Chunking chunker.Options

	// HTTPTimeout is the timeout for each URL fetch. Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Options tunes a single Ingest call.
type Options struct {
	// Chunking overrides the pipeline's chunking configuration when any
	// field is non-zero.
	Chunking *chunker.Options

	// Progress, when non-nil, receives a message after each pipeline stage
	// and each embedding batch.
	Progress func(msg string)
}

// Result reports the outcome of one document ingestion.
type Result struct {
	// DocumentID is the generated document identifier.
	DocumentID string

	// ChunkCount is the number of chunks committed to the vector store.
	ChunkCount int

	// Status is the final document status: completed, partial, or failed.
	Status rag.DocumentStatus

	// Errors holds the per-batch embedding errors, if any.
	Errors []error
}

// Pipeline orchestrates the parse → chunk → embed → upsert flow.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder Embedder

	// vectors persists the embedded chunks.
	vectors rag.VectorStore

	// documents tracks document and chunk lifecycle metadata.
	documents store.DocumentStore

	// metrics records ingestion counters. May be nil.
	metrics *metrics.Metrics

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is used for URL sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// m may be nil to disable metrics.
func NewPipeline(e Embedder, vectors rag.VectorStore, documents store.DocumentStore, m *metrics.Metrics, cfg *Config) (*Pipeline, error) {
	if e == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if vectors == nil {
		return nil, fmt.Errorf("ingestion: vector store must not be nil")
	}
	if documents == nil {
		return nil, fmt.Errorf("ingestion: document store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ragpipe/1.0 (document ingestion)"
	}

	return &Pipeline{
		embedder:  e,
		vectors:   vectors,
		documents: documents,
		metrics:   m,
		cfg:       cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest runs the full pipeline for one source. Parse failures and
// zero-chunk inputs mark the document failed; embedding batch failures are
// collected and, when at least one chunk was committed, the document ends up
// partial instead of failed. The returned error covers infrastructure
// failures only — batch-level degradation is reported in Result.Errors.
func (p *Pipeline) Ingest(ctx context.Context, src Source, userID string, opts Options) (*Result, error) {
	start := time.Now()
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	docID := uuid.NewString()
	data, name, err := p.resolve(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("ingestion: resolving source: %w", err)
	}

	format := src.Format
	if format == "" {
		format = parser.Detect(name, data)
	}
	par, err := parser.New(format)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	doc := &rag.Document{
		ID:       docID,
		Name:     name,
		Type:     format,
		Size:     len(data),
		Status:   rag.StatusProcessing,
		Metadata: src.Metadata,
	}

	parsed, err := par.Parse(ctx, data)
	if err != nil {
		doc.Status = rag.StatusFailed
		if saveErr := p.documents.SaveDocument(ctx, userID, doc); saveErr != nil {
			log.Error("saving failed document", slog.Any("error", saveErr))
		}
		p.observe(metrics.OutcomeError, 0, start)
		return &Result{DocumentID: docID, Status: rag.StatusFailed, Errors: []error{err}}, nil
	}
	doc.Content = parsed.Text
	progress(fmt.Sprintf("parsed %s (%d bytes, format %s)", name, len(data), format))

	if err := p.documents.SaveDocument(ctx, userID, doc); err != nil {
		return nil, fmt.Errorf("ingestion: saving document: %w", err)
	}

	res, err := p.process(ctx, doc, userID, opts.Chunking, progress)
	if err != nil {
		return nil, err
	}
	p.observe(outcomeFor(res.Status), res.ChunkCount, start)
	return res, nil
}

// Reprocess re-runs chunking and embedding for an already-ingested document,
// deleting its existing chunks from both the vector store and the metadata
// store first. Chunking options may differ from the original ingestion.
func (p *Pipeline) Reprocess(ctx context.Context, documentID, userID string, opts Options) (*Result, error) {
	start := time.Now()
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}

	doc, err := p.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("ingestion: loading document %s: %w", documentID, err)
	}

	if err := p.vectors.Delete(ctx, documentID); err != nil {
		return nil, fmt.Errorf("ingestion: clearing vectors of %s: %w", documentID, err)
	}
	if err := p.documents.SaveChunks(ctx, documentID, nil); err != nil {
		return nil, fmt.Errorf("ingestion: clearing chunks of %s: %w", documentID, err)
	}
	progress(fmt.Sprintf("cleared existing chunks of %s", documentID))

	res, err := p.process(ctx, doc, userID, opts.Chunking, progress)
	if err != nil {
		return nil, err
	}
	p.observe(outcomeFor(res.Status), res.ChunkCount, start)
	return res, nil
}

// Delete removes a document from the vector store and the metadata store.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if err := p.vectors.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("ingestion: deleting vectors of %s: %w", documentID, err)
	}
	if err := p.documents.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("ingestion: deleting document %s: %w", documentID, err)
	}
	return nil
}

// process chunks the document text, embeds the chunks in batches, and
// upserts each batch's successfully embedded records.
func (p *Pipeline) process(ctx context.Context, doc *rag.Document, userID string, chunking *chunker.Options, progress func(string)) (*Result, error) {
	log := logging.FromContext(ctx)

	chunkOpts := p.cfg.Chunking
	if chunking != nil {
		chunkOpts = *chunking
	}
	if chunkOpts.Strategy == chunker.StrategySemantic && chunkOpts.Embed == nil {
		chunkOpts.Embed = p.embedFunc()
	}
	chunks, err := chunker.Chunk(ctx, doc.Content, chunkOpts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: chunking %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		if err := p.documents.UpdateStatus(ctx, doc.ID, rag.StatusFailed, 0); err != nil {
			log.Error("marking empty document failed", slog.Any("error", err))
		}
		return &Result{DocumentID: doc.ID, Status: rag.StatusFailed,
			Errors: []error{fmt.Errorf("ingestion: no chunks produced from %s", doc.Name)}}, nil
	}
	progress(fmt.Sprintf("chunked %s into %d chunks", doc.Name, len(chunks)))

	if err := p.documents.SaveChunks(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("ingestion: saving chunks of %s: %w", doc.ID, err)
	}

	committed := 0
	var batchErrs []error
	for startIdx := 0; startIdx < len(chunks); startIdx += p.cfg.BatchSize {
		// Cancellation is cooperative: checked between batches, never mid-batch.
		if err := ctx.Err(); err != nil {
			batchErrs = append(batchErrs, fmt.Errorf("ingestion: cancelled before batch at chunk %d: %w", startIdx, err))
			break
		}

		endIdx := min(startIdx+p.cfg.BatchSize, len(chunks))
		batch := chunks[startIdx:endIdx]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		embeddings, errs := p.embedder.EmbedAll(ctx, texts)
		failed := failedIndexes(errs)
		for _, be := range errs {
			batchErrs = append(batchErrs, fmt.Errorf("ingestion: chunks %d-%d: %w", startIdx+be.Start, startIdx+be.End-1, &be))
			p.observeBatch(metrics.OutcomeError)
		}

		records := make([]rag.VectorRecord, 0, len(batch))
		for i, c := range batch {
			if failed[i] {
				continue
			}
			records = append(records, p.record(doc, userID, c, embeddings[i].Vector))
		}
		if len(records) == 0 {
			continue
		}
		if err := p.vectors.Upsert(ctx, records); err != nil {
			batchErrs = append(batchErrs, fmt.Errorf("ingestion: upserting chunks %d-%d: %w", startIdx, endIdx-1, err))
			continue
		}
		committed += len(records)
		p.observeBatch(metrics.OutcomeOK)
		progress(fmt.Sprintf("embedded and stored chunks %d-%d of %d", startIdx, endIdx-1, len(chunks)))
	}

	status := rag.StatusCompleted
	switch {
	case committed == 0:
		status = rag.StatusFailed
	case len(batchErrs) > 0:
		status = rag.StatusPartial
	}
	if err := p.documents.UpdateStatus(ctx, doc.ID, status, committed); err != nil {
		return nil, fmt.Errorf("ingestion: updating status of %s: %w", doc.ID, err)
	}

	return &Result{
		DocumentID: doc.ID,
		ChunkCount: committed,
		Status:     status,
		Errors:     batchErrs,
	}, nil
}

// record builds the vector record for one embedded chunk.
func (p *Pipeline) record(doc *rag.Document, userID string, c rag.TextChunk, vector []float32) rag.VectorRecord {
	meta := map[string]string{
		"user_id":       userID,
		"document_name": doc.Name,
		"start_char":    strconv.Itoa(c.StartChar),
		"end_char":      strconv.Itoa(c.EndChar),
	}
	for k, v := range doc.Metadata {
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}
	return rag.VectorRecord{
		ID:         rag.ChunkID(doc.ID, c.Index),
		DocumentID: doc.ID,
		ChunkIndex: c.Index,
		Embedding:  vector,
		Content:    c.Content,
		Metadata:   meta,
	}
}

// embedFunc adapts the pipeline's embedder to the chunker's semantic-boundary
// embedding callback, with all-or-nothing semantics.
func (p *Pipeline) embedFunc() chunker.EmbedFunc {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		out, errs := p.embedder.EmbedAll(ctx, texts)
		if len(errs) > 0 {
			return nil, fmt.Errorf("ingestion: embedding paragraphs for semantic boundaries: %w", &errs[0])
		}
		vectors := make([][]float32, len(out))
		for i := range out {
			vectors[i] = out[i].Vector
		}
		return vectors, nil
	}
}

// failedIndexes flattens batch error ranges into a per-text lookup.
func failedIndexes(errs []embedder.BatchError) map[int]bool {
	failed := make(map[int]bool)
	for _, be := range errs {
		for i := be.Start; i < be.End; i++ {
			failed[i] = true
		}
	}
	return failed
}

func (p *Pipeline) observe(outcome string, chunks int, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveIngest(outcome, chunks, time.Since(start))
	}
}

func (p *Pipeline) observeBatch(outcome string) {
	if p.metrics != nil {
		p.metrics.ObserveEmbeddingBatch(outcome)
	}
}

func outcomeFor(status rag.DocumentStatus) string {
	switch status {
	case rag.StatusCompleted:
		return metrics.OutcomeOK
	case rag.StatusPartial:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeError
	}
}
