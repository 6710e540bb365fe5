package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// htmlParser extracts visible text from an HTML document. Script, style, and
// head content are dropped; block elements become paragraph breaks so the
// chunker sees natural boundaries.
type htmlParser struct{}

// blockTags force a paragraph break before and after their content.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true, "br": true, "header": true, "footer": true,
}

// skipTags have no visible text content.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true,
	"iframe": true, "svg": true,
}

func (htmlParser) Format() string { return FormatHTML }

func (htmlParser) Parse(_ context.Context, data []byte) (*rag.ParseResult, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parser: parsing html: %w", err)
	}

	var sb strings.Builder
	extractText(root, &sb)

	meta := map[string]string{"format": FormatHTML}
	if title := findTitle(root); title != "" {
		meta["title"] = title
	}

	text := normalizeNewlines(sb.String())
	return &rag.ParseResult{
		Text:     strings.TrimSpace(collapseBlankLines(text)),
		Metadata: meta,
	}, nil
}

func extractText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte(' ')
			}
			sb.WriteString(t)
		}
		return
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block && sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}
	if block {
		sb.WriteString("\n\n")
	}
}

// findTitle returns the text of the first <title> element, if any.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}
