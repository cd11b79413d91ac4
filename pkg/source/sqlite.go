package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/milad-o/agenticflow-sub002/internal/tokenize"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// SQLiteSource stores documents in SQLite and answers queries through an
// FTS5 table ranked by bm25(). It lists documents and also offers the
// database-style Query surface.
type SQLiteSource struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteSource opens (or creates) a database at path. An empty path
// creates an in-memory database.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: an in-memory database is per-connection, and a
	// single writer avoids lock contention on files.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteSource{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSource) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT NOT NULL UNIQUE,
		content   TEXT NOT NULL,
		metadata  TEXT,
		ts        INTEGER NOT NULL DEFAULT 0,
		embedding TEXT
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add inserts or replaces documents.
func (s *SQLiteSource) Add(ctx context.Context, docs ...retriever.Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range docs {
		if d.ID == "" {
			d.ID = retriever.ContentID(d.Content)
		}

		meta, err := encodeJSON(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of %s: %w", d.ID, err)
		}
		emb, err := encodeJSON(d.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding of %s: %w", d.ID, err)
		}
		var ts int64
		if !d.Timestamp.IsZero() {
			ts = d.Timestamp.UnixNano()
		}

		// FTS5 tables have no REPLACE, delete first.
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`, d.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents(id, content, metadata, ts, embedding) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata,
				ts = excluded.ts, embedding = excluded.embedding`,
			d.ID, d.Content, meta, ts, emb); err != nil {
			return fmt.Errorf("failed to store document %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents_fts(doc_id, content) VALUES (?, ?)`, d.ID, d.Content); err != nil {
			return fmt.Errorf("failed to index document %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// Documents returns every document in insertion order.
func (s *SQLiteSource) Documents(ctx context.Context) ([]retriever.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, ts, embedding FROM documents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []retriever.Document
	for rows.Next() {
		doc, _, err := scanDocument(rows, false)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Query runs an FTS5 match of any query term and returns documents ordered
// by bm25 relevance. The (positive) relevance is stored in metadata as
// "source_score".
func (s *SQLiteSource) Query(ctx context.Context, queryStr string, limit int) ([]retriever.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	match := ftsMatch(queryStr)
	if match == "" {
		return []retriever.Document{}, nil
	}

	// bm25() is negative, lower is better.
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.content, d.metadata, d.ts, d.embedding, bm25(documents_fts) AS score
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.doc_id
		WHERE documents_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	docs := []retriever.Document{}
	for rows.Next() {
		doc, score, err := scanDocument(rows, true)
		if err != nil {
			return nil, err
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any, 1)
		}
		doc.Metadata["source_score"] = -score
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes documents by id.
func (s *SQLiteSource) Delete(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored documents.
func (s *SQLiteSource) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// HasEmbeddings reports whether any stored document has an embedding.
func (s *SQLiteSource) HasEmbeddings() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE embedding IS NOT NULL AND embedding != 'null'`).Scan(&n)
	return err == nil && n > 0
}

// Close closes the database.
func (s *SQLiteSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ftsMatch turns free text into an FTS5 expression matching any term.
func ftsMatch(q string) string {
	terms := tokenize.Unique(tokenize.Words(q))
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

func encodeJSON(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 0 {
			return sql.NullString{}, nil
		}
	case []float32:
		if len(x) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanDocument(rows *sql.Rows, withScore bool) (retriever.Document, float64, error) {
	var (
		doc       retriever.Document
		meta, emb sql.NullString
		ts        int64
		score     float64
	)

	dest := []any{&doc.ID, &doc.Content, &meta, &ts, &emb}
	if withScore {
		dest = append(dest, &score)
	}
	if err := rows.Scan(dest...); err != nil {
		return doc, 0, fmt.Errorf("failed to scan document: %w", err)
	}

	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &doc.Metadata); err != nil {
			return doc, 0, fmt.Errorf("failed to decode metadata of %s: %w", doc.ID, err)
		}
	}
	if emb.Valid {
		if err := json.Unmarshal([]byte(emb.String), &doc.Embedding); err != nil {
			return doc, 0, fmt.Errorf("failed to decode embedding of %s: %w", doc.ID, err)
		}
	}
	if ts != 0 {
		doc.Timestamp = time.Unix(0, ts).UTC()
	}
	return doc, score, nil
}
