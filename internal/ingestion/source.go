package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source describes one document to ingest. Exactly one of Path, URL, Reader,
// or Data must be set.
type Source struct {
	// Name is the display name persisted with the document. When empty it is
	// inferred from Path or URL; in-memory sources fall back to "untitled".
	Name string

	// Path is a local file to read.
	Path string

	// URL is an HTTP(S) page to fetch.
	URL string

	// Reader is a stream to drain. The caller retains ownership of any
	// underlying closer.
	Reader io.Reader

	// Data is an in-memory buffer.
	Data []byte

	// Format overrides format detection ("text", "markdown", "html").
	Format string

	// Metadata is carried onto the document and every vector record.
	Metadata map[string]string
}

// resolve reads the source's raw bytes and fills in the display name.
func (p *Pipeline) resolve(ctx context.Context, src Source) ([]byte, string, error) {
	switch {
	case src.Path != "":
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", src.Path, err)
		}
		return data, pickName(src.Name, filepath.Base(src.Path)), nil

	case src.URL != "":
		data, err := p.fetch(ctx, src.URL)
		if err != nil {
			return nil, "", err
		}
		return data, pickName(src.Name, nameFromURL(src.URL)), nil

	case src.Reader != nil:
		data, err := io.ReadAll(src.Reader)
		if err != nil {
			return nil, "", fmt.Errorf("reading stream: %w", err)
		}
		return data, pickName(src.Name, "untitled"), nil

	case src.Data != nil:
		return src.Data, pickName(src.Name, "untitled"), nil

	default:
		return nil, "", fmt.Errorf("source has no path, url, reader, or data")
	}
}

// fetch retrieves the raw content of a URL.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html, text/markdown")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// nameFromURL derives a display name from the last non-empty path segment,
// falling back to the host for bare URLs.
func nameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if base := path.Base(strings.TrimRight(parsed.Path, "/")); base != "" && base != "." && base != "/" {
		return base
	}
	if parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	return rawURL
}

func pickName(explicit, inferred string) string {
	if explicit != "" {
		return explicit
	}
	return inferred
}
