package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// markdownParser strips Markdown syntax down to plain text while preserving
// paragraph structure, so the paragraph and semantic chunking strategies see
// the same blank-line boundaries the author wrote.
type markdownParser struct{}

var (
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdEmphasis   = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	mdInlineCode = regexp.MustCompile("`([^`]*)`")
	mdListMarker = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+`)
	mdBlockquote = regexp.MustCompile(`(?m)^>\s?`)
	mdHRule      = regexp.MustCompile(`(?m)^(\*{3,}|-{3,}|_{3,})\s*$`)
)

func (markdownParser) Format() string { return FormatMarkdown }

func (markdownParser) Parse(_ context.Context, data []byte) (*rag.ParseResult, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("parser: input is not valid UTF-8")
	}
	src := normalizeNewlines(string(data))

	meta := map[string]string{"format": FormatMarkdown}
	if title := firstHeading(src); title != "" {
		meta["title"] = title
	}
	meta["heading_count"] = strconv.Itoa(len(mdHeading.FindAllString(src, -1)))

	text := stripCodeFences(src)
	text = mdImage.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdHRule.ReplaceAllString(text, "")
	text = mdBlockquote.ReplaceAllString(text, "")
	text = mdListMarker.ReplaceAllString(text, "")
	text = mdEmphasis.ReplaceAllString(text, "$2")
	text = mdInlineCode.ReplaceAllString(text, "$1")

	return &rag.ParseResult{
		Text:     strings.TrimSpace(collapseBlankLines(text)),
		Metadata: meta,
	}, nil
}

// firstHeading returns the text of the first ATX heading, used as the title.
func firstHeading(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		}
	}
	return ""
}

// stripCodeFences keeps fenced code block bodies but drops the fence lines,
// so code content remains searchable without the ``` noise.
func stripCodeFences(src string) string {
	lines := strings.Split(src, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// collapseBlankLines reduces runs of 3+ newlines to a single blank line.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
