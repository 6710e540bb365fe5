// Package store provides a SQLite-backed metadata store for ingested
// documents and their chunks. Vector payloads live in the vector store; this
// package owns the lifecycle bookkeeping: document status, chunk spans, and
// content hashes used to detect re-ingestion of unchanged sources.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/ragpipe-go/internal/rag"
)

// DocumentStore persists document and chunk metadata. Implementations must
// be safe for concurrent use.
type DocumentStore interface {
	// SaveDocument inserts or replaces a document record.
	SaveDocument(ctx context.Context, userID string, doc *rag.Document) error
	// UpdateStatus sets the lifecycle status and chunk count of a document.
	UpdateStatus(ctx context.Context, documentID string, status rag.DocumentStatus, chunkCount int) error
	// GetDocument returns the document with the given ID, or sql.ErrNoRows.
	GetDocument(ctx context.Context, documentID string) (*rag.Document, error)
	// ListDocuments returns all documents for a user, newest first.
	ListDocuments(ctx context.Context, userID string) ([]rag.Document, error)
	// SaveChunks replaces the chunk records of a document.
	SaveChunks(ctx context.Context, documentID string, chunks []rag.TextChunk) error
	// Chunks returns a document's chunks ordered by index.
	Chunks(ctx context.Context, documentID string) ([]rag.TextChunk, error)
	// DeleteDocument removes the document and all of its chunks.
	DeleteDocument(ctx context.Context, documentID string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a DocumentStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

var _ DocumentStore = (*SQLiteStore)(nil)

// DefaultDBPath returns the default path for the metadata database.
// It resolves to ~/.ragpipe/documents.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragpipe")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "documents.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id            TEXT    PRIMARY KEY,
    user_id       TEXT    NOT NULL,
    name          TEXT    NOT NULL,
    type          TEXT    NOT NULL,
    size          INTEGER NOT NULL,
    content       TEXT    NOT NULL,
    content_hash  TEXT    NOT NULL,
    status        TEXT    NOT NULL CHECK(status IN ('pending','processing','completed','failed','partial')),
    chunk_count   INTEGER NOT NULL DEFAULT 0,
    metadata      TEXT    NOT NULL DEFAULT '{}',
    created_at    INTEGER NOT NULL,  -- Unix timestamp (seconds)
    updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_user_created
    ON documents (user_id, created_at);

CREATE TABLE IF NOT EXISTS chunks (
    id           TEXT    PRIMARY KEY,
    document_id  TEXT    NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index  INTEGER NOT NULL,
    content      TEXT    NOT NULL,
    start_char   INTEGER NOT NULL,
    end_char     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document
    ON chunks (document_id, chunk_index);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("store: enable foreign keys: %w", err)
	}
	return nil
}

// ContentHash returns the hex SHA-256 of a document's parsed text. Matching
// hashes mean re-ingestion can be skipped unless chunking options changed.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}

// SaveDocument inserts or replaces a document record.
func (s *SQLiteStore) SaveDocument(ctx context.Context, userID string, doc *rag.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("store: encoding metadata for %s: %w", doc.ID, err)
	}
	now := time.Now().Unix()
	const q = `
INSERT INTO documents (id, user_id, name, type, size, content, content_hash, status, chunk_count, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name, type = excluded.type, size = excluded.size,
    content = excluded.content, content_hash = excluded.content_hash,
    status = excluded.status, chunk_count = excluded.chunk_count,
    metadata = excluded.metadata, updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q,
		doc.ID, userID, doc.Name, doc.Type, doc.Size, doc.Content,
		ContentHash(doc.Content), string(doc.Status), doc.ChunkCount, string(meta), now, now)
	if err != nil {
		return fmt.Errorf("store: save document %s: %w", doc.ID, err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status and chunk count of a document.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, documentID string, status rag.DocumentStatus, chunkCount int) error {
	const q = `UPDATE documents SET status = ?, chunk_count = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), chunkCount, time.Now().Unix(), documentID)
	if err != nil {
		return fmt.Errorf("store: update status of %s: %w", documentID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: update status: document %s not found", documentID)
	}
	return nil
}

// GetDocument returns the document with the given ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*rag.Document, error) {
	const q = `SELECT id, name, type, size, content, status, chunk_count, metadata FROM documents WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, documentID)
	doc, err := scanDocument(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("store: get document %s: %w", documentID, err)
	}
	return doc, nil
}

// ListDocuments returns all documents for a user, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, userID string) ([]rag.Document, error) {
	const q = `
SELECT id, name, type, size, content, status, chunk_count, metadata
FROM   documents
WHERE  user_id = ?
ORDER  BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return docs, nil
}

// scanDocument reads one documents row via the given Scan function.
func scanDocument(scan func(...any) error) (*rag.Document, error) {
	var (
		doc    rag.Document
		status string
		meta   string
	)
	if err := scan(&doc.ID, &doc.Name, &doc.Type, &doc.Size, &doc.Content, &status, &doc.ChunkCount, &meta); err != nil {
		return nil, err
	}
	doc.Status = rag.DocumentStatus(status)
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &doc, nil
}

// SaveChunks replaces the chunk records of a document in one transaction.
func (s *SQLiteStore) SaveChunks(ctx context.Context, documentID string, chunks []rag.TextChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save chunks begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("store: save chunks clear: %w", err)
	}
	const q = `INSERT INTO chunks (id, document_id, chunk_index, content, start_char, end_char) VALUES (?, ?, ?, ?, ?, ?)`
	for _, c := range chunks {
		id := rag.ChunkID(documentID, c.Index)
		if _, err := tx.ExecContext(ctx, q, id, documentID, c.Index, c.Content, c.StartChar, c.EndChar); err != nil {
			return fmt.Errorf("store: save chunk %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save chunks commit: %w", err)
	}
	return nil
}

// Chunks returns a document's chunks ordered by index.
func (s *SQLiteStore) Chunks(ctx context.Context, documentID string) ([]rag.TextChunk, error) {
	const q = `
SELECT chunk_index, content, start_char, end_char
FROM   chunks
WHERE  document_id = ?
ORDER  BY chunk_index ASC`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: chunks: %w", err)
	}
	defer rows.Close()

	var chunks []rag.TextChunk
	for rows.Next() {
		var c rag.TextChunk
		if err := rows.Scan(&c.Index, &c.Content, &c.StartChar, &c.EndChar); err != nil {
			return nil, fmt.Errorf("store: chunks scan: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: chunks rows: %w", err)
	}
	return chunks, nil
}

// DeleteDocument removes the document and all of its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: delete begin: %w", err)
	}
	defer tx.Rollback()

	// Explicit chunk delete so cascade behaviour does not depend on the
	// foreign_keys pragma surviving connection recycling.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("store: delete chunks of %s: %w", documentID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return fmt.Errorf("store: delete document %s: %w", documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: delete commit: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
