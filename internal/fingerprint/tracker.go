package fingerprint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// DBFileName is the tracker database inside the data directory.
const DBFileName = "fingerprints.db"

var schema = []string{`
CREATE TABLE IF NOT EXISTS fingerprints (
	path            TEXT PRIMARY KEY,
	file_id         TEXT NOT NULL,
	mtime_ns        INTEGER NOT NULL,
	size_bytes      INTEGER NOT NULL,
	content_hash    TEXT NOT NULL DEFAULT '',
	embedding_model TEXT NOT NULL,
	chunk_count     INTEGER NOT NULL DEFAULT 0,
	indexed_at      INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_fingerprints_file_id ON fingerprints(file_id)`,
}

// Tracker stores fingerprint records in SQLite.
// It is safe for concurrent use; writes are serialized on one connection.
type Tracker struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the tracker database at path.
// An empty path opens an in-memory database.
// A database that fails its integrity check is discarded and recreated, since
// every record can be rebuilt by re-embedding.
func Open(path string) (*Tracker, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create tracker directory: %w", err)
		}
		if err := validateDB(path); err != nil {
			slog.Warn("fingerprint database unusable, recreating",
				slog.String("path", path),
				slog.String("error", err.Error()))
			removeDB(path)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open fingerprint database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &Tracker{db: db, path: path}, nil
}

func validateDB(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

func removeDB(path string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
}

// Get returns the record for path, or nil if there is none.
func (t *Tracker) Get(ctx context.Context, path string) (*Record, error) {
	row := t.db.QueryRowContext(ctx, `
		SELECT path, file_id, mtime_ns, size_bytes, content_hash, embedding_model, chunk_count, indexed_at
		FROM fingerprints WHERE path = ?`, path)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprint for %s: %w", path, err)
	}
	return rec, nil
}

// Upsert inserts or replaces the record for rec.Path.
func (t *Tracker) Upsert(ctx context.Context, rec Record) error {
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = time.Now()
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO fingerprints (path, file_id, mtime_ns, size_bytes, content_hash, embedding_model, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			file_id = excluded.file_id,
			mtime_ns = excluded.mtime_ns,
			size_bytes = excluded.size_bytes,
			content_hash = excluded.content_hash,
			embedding_model = excluded.embedding_model,
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at`,
		rec.Path, rec.FileID, rec.MtimeNS, rec.SizeBytes, rec.ContentHash,
		rec.EmbeddingModel, rec.ChunkCount, rec.IndexedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert fingerprint for %s: %w", rec.Path, err)
	}
	return nil
}

// All returns every record ordered by path.
func (t *Tracker) All(ctx context.Context) ([]Record, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT path, file_id, mtime_ns, size_bytes, content_hash, embedding_model, chunk_count, indexed_at
		FROM fingerprints ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Delete removes the records for paths in a single transaction.
func (t *Tracker) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM fingerprints WHERE path = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to delete fingerprint for %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of records.
func (t *Tracker) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (t *Tracker) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Path returns the database path ("" for in-memory).
func (t *Tracker) Path() string {
	return t.path
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec       Record
		indexedAt int64
	)
	if err := s.Scan(&rec.Path, &rec.FileID, &rec.MtimeNS, &rec.SizeBytes, &rec.ContentHash,
		&rec.EmbeddingModel, &rec.ChunkCount, &indexedAt); err != nil {
		return nil, err
	}
	rec.IndexedAt = time.Unix(0, indexedAt)
	return &rec, nil
}
