// Package transform rewrites or decomposes a user query before it is
// embedded for retrieval. Four kinds are supported: pass-through, keyword
// expansion, hypothetical-document generation (HyDE), and sub-question
// decomposition. The generation-backed kinds degrade to pass-through when no
// generator callback is supplied, and the degradation is reported through an
// explicit flag rather than inferred from output text.
package transform

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Kind selects the query transformation.
type Kind string

const (
	// KindOriginal passes the query through unchanged.
	KindOriginal Kind = "original"
	// KindExpanded appends extracted keywords to the query.
	KindExpanded Kind = "expanded"
	// KindHyde retrieves with a generated hypothetical answer document
	// instead of the query itself.
	KindHyde Kind = "hyde"
	// KindSubquestion decomposes the query into self-contained
	// sub-questions; the first one drives retrieval by default.
	KindSubquestion Kind = "subquestion"
)

// Generator produces text from a prompt. It is injected by the caller; the
// retrieval core never constructs an LLM client of its own.
type Generator func(ctx context.Context, prompt string) (string, error)

// Result is the outcome of a Transform call.
type Result struct {
	// Query is the text to embed for retrieval.
	Query string

	// Kind is the transformation that was requested.
	Kind Kind

	// FellBack is true when a generation-backed kind was requested without
	// a Generator and the original query was used instead.
	FellBack bool

	// SubQuestions holds the full decomposition for KindSubquestion.
	SubQuestions []string
}

// defaultMaxKeywords bounds the keywords appended by KindExpanded.
const defaultMaxKeywords = 5

// hydePrompt instructs the generator to write a hypothetical answer
// document. The generated passage, not the question, is embedded.
const hydePrompt = `Write a short, factual passage that directly answers the following question.
Write it as if it were an excerpt from a reference document. Do not address
the reader, do not say you are answering a question, just write the passage.

Question: %s

Passage:`

// subquestionPrompt instructs the generator to decompose the query.
const subquestionPrompt = `Break the following question into 2 to 4 simpler, self-contained
sub-questions. Each sub-question must be answerable on its own. Return one
sub-question per line, numbered.

Question: %s

Sub-questions:`

// Transform rewrites query according to kind. gen may be nil; the
// generation-backed kinds then fall back to the original query with
// Result.FellBack set.
func Transform(ctx context.Context, query string, kind Kind, gen Generator) (*Result, error) {
	switch kind {
	case "", KindOriginal:
		return &Result{Query: query, Kind: KindOriginal}, nil

	case KindExpanded:
		return &Result{Query: expand(query, defaultMaxKeywords), Kind: kind}, nil

	case KindHyde:
		if gen == nil {
			return &Result{Query: query, Kind: kind, FellBack: true}, nil
		}
		doc, err := gen(ctx, fmt.Sprintf(hydePrompt, query))
		if err != nil {
			return nil, fmt.Errorf("transform: hyde generation failed: %w", err)
		}
		doc = strings.TrimSpace(doc)
		if doc == "" {
			return &Result{Query: query, Kind: kind, FellBack: true}, nil
		}
		return &Result{Query: doc, Kind: kind}, nil

	case KindSubquestion:
		if gen == nil {
			return &Result{Query: query, Kind: kind, FellBack: true}, nil
		}
		raw, err := gen(ctx, fmt.Sprintf(subquestionPrompt, query))
		if err != nil {
			return nil, fmt.Errorf("transform: subquestion generation failed: %w", err)
		}
		subs := parseSubQuestions(raw)
		if len(subs) == 0 {
			return &Result{Query: query, Kind: kind, FellBack: true}, nil
		}
		return &Result{Query: subs[0], Kind: kind, SubQuestions: subs}, nil

	default:
		return nil, fmt.Errorf("transform: unknown kind %q — valid values: original, expanded, hyde, subquestion", kind)
	}
}

// expand strips punctuation, drops stop-words, and appends up to maxKeywords
// distinct remaining keywords to the original query.
func expand(query string, maxKeywords int) string {
	var keywords []string
	seen := make(map[string]bool)

	for _, field := range strings.Fields(query) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		lower := strings.ToLower(word)
		if lower == "" || stopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, lower)
		if len(keywords) == maxKeywords {
			break
		}
	}

	if len(keywords) == 0 {
		return query
	}
	return query + " " + strings.Join(keywords, " ")
}

// parseSubQuestions extracts the sub-questions from the generator output:
// one per line, with list numbering and bullets stripped.
func parseSubQuestions(raw string) []string {
	var subs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.)- ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		subs = append(subs, line)
		if len(subs) == 4 {
			break
		}
	}
	return subs
}
