// Package assembler turns ranked retrieval hits into a citation-annotated
// context string and a system prompt, bounded by a token budget. Token
// accounting uses the budget package's character heuristic and is an
// approximation, not a tokenizer count.
package assembler

import (
	"fmt"
	"strings"

	"github.com/54b3r/ragpipe-go/internal/budget"
	"github.com/54b3r/ragpipe-go/internal/rag"
	"github.com/54b3r/ragpipe-go/internal/retriever"
)

// CitationFormat selects how chunk provenance is rendered in the context.
type CitationFormat string

const (
	// FormatNumbered prefixes each chunk with a bracketed index: [1], [2], ...
	FormatNumbered CitationFormat = "numbered"
	// FormatInline prefixes each chunk with "(Source: name)".
	FormatInline CitationFormat = "inline"
)

// noContextMarker appears in the prompt when retrieval produced nothing
// usable. Zero results is a valid outcome, not an error.
const noContextMarker = "No relevant context found."

// ragPromptTemplate wraps assembled context and the user query into the
// final system prompt.
const ragPromptTemplate = `You are a helpful assistant that answers questions using the provided context.

Context:
%s

Answer using only the context above. If the context does not contain enough
information to answer, say so explicitly instead of guessing.

Question: %s`

// Options controls context assembly.
type Options struct {
	// MaxContextTokens bounds the assembled context. Zero uses
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// IncludeCitations renders citation markers inside the context string.
	// Citations are tracked either way.
	IncludeCitations bool

	// Format selects the citation marker style. Empty means numbered.
	Format CitationFormat

	// SystemPrompt overrides the built-in prompt template. The override
	// receives the assembled context and query via the same two verbs.
	SystemPrompt string
}

func (o Options) withDefaults() Options {
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	if o.Format == "" {
		o.Format = FormatNumbered
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = ragPromptTemplate
	}
	return o
}

// BuildContext concatenates ranked chunks into a context string within the
// token budget and wraps it into the final prompt. Chunks that would push the
// context past the budget are dropped, so ChunksUsed always equals the number
// of citations. A first chunk that alone exceeds the budget is truncated
// rather than dropped.
func BuildContext(result *rag.RetrievalResult, opts Options) *rag.Context {
	opts = opts.withDefaults()

	var (
		blocks   []string
		included []rag.SearchResult
		used     int
	)
	for i, c := range result.Chunks {
		block := renderBlock(i, c, opts)
		if used+budget.Estimate(block) > opts.MaxContextTokens {
			if len(blocks) == 0 {
				block = budget.Truncate(block, opts.MaxContextTokens)
				blocks = append(blocks, block)
				included = append(included, c)
			}
			break
		}
		blocks = append(blocks, block)
		included = append(included, c)
		used += budget.Estimate(block)
	}

	contextStr := strings.Join(blocks, "\n\n")
	prompt := BuildRagPrompt(result.Query, contextStr, opts.SystemPrompt)

	return &rag.Context{
		Prompt:    prompt,
		Context:   contextStr,
		Citations: retriever.Citations(included),
		Metadata: rag.ContextMetadata{
			RetrievalTime: result.Latency,
			ChunksUsed:    len(included),
			TotalTokens:   budget.Estimate(prompt),
		},
	}
}

// BuildRagPrompt wraps context and query into the system prompt. An empty
// context is replaced by an explicit no-context marker so the model knows
// retrieval found nothing rather than seeing a blank section.
func BuildRagPrompt(query, context, template string) string {
	if template == "" {
		template = ragPromptTemplate
	}
	if strings.TrimSpace(context) == "" {
		context = noContextMarker
	}
	return fmt.Sprintf(template, context, query)
}

// TruncateContext trims text to the token budget, preferring sentence or
// line boundaries near the cut.
func TruncateContext(text string, maxTokens int) string {
	return budget.Truncate(text, maxTokens)
}

func renderBlock(i int, c rag.SearchResult, opts Options) string {
	if !opts.IncludeCitations {
		return c.Record.Content
	}
	switch opts.Format {
	case FormatInline:
		name := c.Record.Metadata["document_name"]
		if name == "" {
			name = c.Record.DocumentID
		}
		return fmt.Sprintf("(Source: %s) %s", name, c.Record.Content)
	default:
		return fmt.Sprintf("[%d] %s", i+1, c.Record.Content)
	}
}
