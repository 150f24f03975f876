package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/attachmcp/attachmcp/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS stores (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contents (
	id          TEXT PRIMARY KEY,
	store_id    TEXT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	filename    TEXT NOT NULL,
	mime_type   TEXT NOT NULL DEFAULT '',
	hash        TEXT NOT NULL,
	size_bytes  INTEGER NOT NULL,
	line_count  INTEGER NOT NULL,
	preview     TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	uploaded_at INTEGER NOT NULL,
	UNIQUE (store_id, hash)
);

CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	content_id TEXT NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
	store_id   TEXT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	text       TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contents_store_id ON contents(store_id);
CREATE INDEX IF NOT EXISTS idx_chunks_content_id ON chunks(content_id);
CREATE INDEX IF NOT EXISTS idx_chunks_store_id ON chunks(store_id);
`

// SQLiteStore is the SQLite-backed repository for stores, contents, and
// chunks. A single connection serializes writers; WAL keeps readers cheap.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
// Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// and keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateStore persists a new store.
func (s *SQLiteStore) CreateStore(ctx context.Context, st *Store) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stores (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		st.ID, st.Name, st.Description, st.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	return nil
}

// GetStore fetches a store by id.
func (s *SQLiteStore) GetStore(ctx context.Context, id string) (*Store, error) {
	var st Store
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM stores WHERE id = ?`, id).
		Scan(&st.ID, &st.Name, &st.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.CodeStoreNotFound, "store %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	st.CreatedAt = time.UnixMilli(createdAt)
	return &st, nil
}

// DeleteStore removes a store and, via cascade, its contents and chunks.
func (s *SQLiteStore) DeleteStore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.CodeStoreNotFound, "store %s not found", id)
	}
	return nil
}

// CreateContent persists a content and its chunks in one transaction.
func (s *SQLiteStore) CreateContent(ctx context.Context, c *Content, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contents (id, store_id, filename, mime_type, hash, size_bytes, line_count, preview, text, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StoreID, c.Filename, c.MimeType, c.Hash, c.SizeBytes, c.LineCount, c.Preview, c.Text, c.UploadedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert content: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, content_id, store_id, idx, text, start_line, end_line)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.ContentID, ch.StoreID, ch.Index, ch.Text, ch.StartLine, ch.EndLine); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit content: %w", err)
	}
	return nil
}

// GetContent fetches a content by id, including its full text.
func (s *SQLiteStore) GetContent(ctx context.Context, id string) (*Content, error) {
	var c Content
	var uploadedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, store_id, filename, mime_type, hash, size_bytes, line_count, preview, text, uploaded_at
		 FROM contents WHERE id = ?`, id).
		Scan(&c.ID, &c.StoreID, &c.Filename, &c.MimeType, &c.Hash, &c.SizeBytes, &c.LineCount, &c.Preview, &c.Text, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.CodeContentNotFound, "content %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	c.UploadedAt = time.UnixMilli(uploadedAt)
	return &c, nil
}

// GetContentByHash looks up a content by its dedup key (store id, hash).
// Returns nil without error when no row matches.
func (s *SQLiteStore) GetContentByHash(ctx context.Context, storeID, hash string) (*Content, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM contents WHERE store_id = ? AND hash = ?`, storeID, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up content by hash: %w", err)
	}
	return s.GetContent(ctx, id)
}

// ListContent returns one page of content summaries for a store in
// insertion order, plus the total count.
func (s *SQLiteStore) ListContent(ctx context.Context, storeID string, offset, limit int) ([]*Summary, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contents WHERE store_id = ?`, storeID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count contents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.filename, c.mime_type, c.size_bytes, c.line_count, c.preview, c.uploaded_at,
		        (SELECT COUNT(*) FROM chunks ch WHERE ch.content_id = c.id)
		 FROM contents c
		 WHERE c.store_id = ?
		 ORDER BY c.uploaded_at ASC, c.rowid ASC
		 LIMIT ? OFFSET ?`, storeID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contents: %w", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		var sum Summary
		var uploadedAt int64
		if err := rows.Scan(&sum.ID, &sum.Filename, &sum.MimeType, &sum.SizeBytes,
			&sum.LineCount, &sum.Preview, &uploadedAt, &sum.ChunkCount); err != nil {
			return nil, 0, fmt.Errorf("failed to scan content row: %w", err)
		}
		sum.UploadedAt = time.UnixMilli(uploadedAt)
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate contents: %w", err)
	}
	return summaries, total, nil
}

// CountChunks returns the number of chunks persisted for a content.
func (s *SQLiteStore) CountChunks(ctx context.Context, contentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE content_id = ?`, contentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// ListChunksByStore returns all chunks of a store in content insertion
// order, then chunk order. This is the rebuild feed for the index manager.
func (s *SQLiteStore) ListChunksByStore(ctx context.Context, storeID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ch.id, ch.content_id, ch.store_id, ch.idx, ch.text, ch.start_line, ch.end_line
		 FROM chunks ch
		 JOIN contents c ON c.id = ch.content_id
		 WHERE ch.store_id = ?
		 ORDER BY c.uploaded_at ASC, c.rowid ASC, ch.idx ASC`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetChunk fetches a chunk by id.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	var ch Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content_id, store_id, idx, text, start_line, end_line
		 FROM chunks WHERE id = ?`, id).
		Scan(&ch.ID, &ch.ContentID, &ch.StoreID, &ch.Index, &ch.Text, &ch.StartLine, &ch.EndLine)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.CodeContentNotFound, "chunk %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &ch, nil
}

func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	var chunks []*Chunk
	for rows.Next() {
		var ch Chunk
		if err := rows.Scan(&ch.ID, &ch.ContentID, &ch.StoreID, &ch.Index,
			&ch.Text, &ch.StartLine, &ch.EndLine); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}
	return chunks, nil
}
