package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// BatchError records the failure of one sub-batch of an EmbedAll call.
type BatchError struct {
	// Batch is the 0-based sub-batch index.
	Batch int

	// Start and End delimit the input range [Start, End) the batch covered.
	Start, End int

	// Err is the underlying provider error.
	Err error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("embedder: batch %d (inputs %d-%d): %v", e.Batch, e.Start, e.End, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *BatchError) Unwrap() error { return e.Err }

// BatchedConfig tunes the batching client.
type BatchedConfig struct {
	// RPS is the sustained request rate allowed against the provider.
	// Zero disables throttling.
	RPS float64

	// Burst is the maximum instantaneous burst. Defaults to 1 when RPS is
	// set and Burst is zero.
	Burst int
}

// Batched wraps a provider with transparent batch splitting and an optional
// token-bucket request throttle. A request of n texts becomes
// ceil(n/MaxBatchSize) provider calls whose results are concatenated in the
// original input order.
type Batched struct {
	// provider is the wrapped backend.
	provider rag.Embedder

	// limiter throttles provider requests; nil means unthrottled.
	limiter *rate.Limiter
}

// NewBatched wraps provider. cfg may be nil for no throttling.
func NewBatched(provider rag.Embedder, cfg *BatchedConfig) *Batched {
	b := &Batched{provider: provider}
	if cfg != nil && cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return b
}

// Dimension returns the wrapped provider's vector length.
func (b *Batched) Dimension() int { return b.provider.Dimension() }

// MaxBatchSize returns the wrapped provider's per-request limit.
func (b *Batched) MaxBatchSize() int { return b.provider.MaxBatchSize() }

// EmbedAll embeds texts in provider-sized sub-batches. The returned slice is
// parallel to texts; entries covered by a failed batch hold a zero-value
// Embedding and the failure is recorded in the error list with its batch
// index. A sub-batch failure does not abort sibling batches. Cancellation is
// cooperative: the context is checked between batches, never mid-batch, and
// remaining batches are recorded as failed when it fires.
func (b *Batched) EmbedAll(ctx context.Context, texts []string) ([]rag.Embedding, []BatchError) {
	if len(texts) == 0 {
		return nil, nil
	}

	max := b.provider.MaxBatchSize()
	if max <= 0 {
		max = len(texts)
	}

	embeddings := make([]rag.Embedding, len(texts))
	var errs []BatchError

	batch := 0
	for start := 0; start < len(texts); start += max {
		end := start + max
		if end > len(texts) {
			end = len(texts)
		}

		if err := ctx.Err(); err != nil {
			errs = append(errs, BatchError{Batch: batch, Start: start, End: end, Err: err})
			batch++
			continue
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				errs = append(errs, BatchError{Batch: batch, Start: start, End: end, Err: err})
				batch++
				continue
			}
		}

		out, err := b.provider.Embed(ctx, texts[start:end])
		switch {
		case err != nil:
			errs = append(errs, BatchError{Batch: batch, Start: start, End: end, Err: err})
		case len(out) != end-start:
			errs = append(errs, BatchError{
				Batch: batch, Start: start, End: end,
				Err: fmt.Errorf("provider returned %d embeddings for %d inputs", len(out), end-start),
			})
		default:
			copy(embeddings[start:end], out)
		}
		batch++
	}

	return embeddings, errs
}

// Embed implements rag.Embedder with all-or-nothing semantics: any sub-batch
// failure fails the whole call. Query-time callers use this; ingestion uses
// EmbedAll to keep partial results.
func (b *Batched) Embed(ctx context.Context, texts []string) ([]rag.Embedding, error) {
	embeddings, errs := b.EmbedAll(ctx, texts)
	if len(errs) > 0 {
		return nil, &errs[0]
	}
	return embeddings, nil
}
