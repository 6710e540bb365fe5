package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// textParser passes plain text through after a validity check and newline
// normalization.
type textParser struct{}

func (textParser) Format() string { return FormatText }

func (textParser) Parse(_ context.Context, data []byte) (*rag.ParseResult, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("parser: input is not valid UTF-8")
	}
	text := normalizeNewlines(string(data))
	return &rag.ParseResult{
		Text:     strings.TrimSpace(text),
		Metadata: map[string]string{"format": FormatText},
	}, nil
}

// normalizeNewlines converts CRLF and lone CR line endings to LF so offset
// arithmetic downstream sees one newline convention.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
