// Package parser converts raw document bytes into plain text for chunking.
// Supported formats are plain text, Markdown, and HTML; each parser also
// extracts light format-specific metadata (title, heading count). Format
// selection happens once at ingestion time, either explicitly or inferred
// from the source name and content.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// Format discriminants accepted by New and returned by Detect.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// extensionFormats maps file extensions to parser formats.
var extensionFormats = map[string]string{
	".txt":  FormatText,
	".text": FormatText,
	".log":  FormatText,
	".md":   FormatMarkdown,
	".mdx":  FormatMarkdown,
	".html": FormatHTML,
	".htm":  FormatHTML,
}

// New returns the parser registered for the given format.
// Unknown formats yield rag.ErrUnsupportedFormat.
func New(format string) (rag.Parser, error) {
	switch format {
	case FormatText, "", "plain":
		return textParser{}, nil
	case FormatMarkdown, "md":
		return markdownParser{}, nil
	case FormatHTML, "htm":
		return htmlParser{}, nil
	default:
		return nil, fmt.Errorf("parser: format %q: %w", format, rag.ErrUnsupportedFormat)
	}
}

// Detect infers the document format from its source name, falling back to
// content sniffing when the extension is unknown. Unrecognized input is
// treated as plain text.
func Detect(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	return sniff(data)
}

// sniff inspects the first KB of content for HTML or Markdown markers.
func sniff(data []byte) string {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	s := strings.ToLower(strings.TrimSpace(string(head)))
	switch {
	case strings.HasPrefix(s, "<!doctype html"), strings.HasPrefix(s, "<html"):
		return FormatHTML
	case strings.HasPrefix(s, "# "), strings.Contains(s, "\n# "), strings.Contains(s, "\n## "):
		return FormatMarkdown
	default:
		return FormatText
	}
}
