// Package sqlite implements the document store and session storage on an
// embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio/internal/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB opened with the pure-Go SQLite driver.
type DB struct {
	sql *sql.DB
}

var (
	_ domain.DocumentStore  = (*DB)(nil)
	_ domain.SessionStorage = (*SessionRepo)(nil)
)

// Open opens or creates the database at path and runs migrations. Use
// ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	s, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection also keeps ":memory:" alive.
	s.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"CREATE TABLE IF NOT EXISTS documents (collection TEXT NOT NULL, id TEXT NOT NULL, fields TEXT NOT NULL, updated_at INTEGER NOT NULL, PRIMARY KEY (collection, id));",
		"CREATE TABLE IF NOT EXISTS admin_sessions (key TEXT PRIMARY KEY, value BLOB NOT NULL, expires_at INTEGER);",
	}
	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- DocumentStore ---

// ListOrdered returns every document of collection ordered by field.
// Documents without the field sort last.
func (d *DB) ListOrdered(ctx context.Context, collection, field string, dir domain.Direction) ([]domain.RawDocument, error) {
	order := "ASC"
	if dir == domain.Descending {
		order = "DESC"
	}
	query := fmt.Sprintf(
		"SELECT id, fields, json_extract(fields, ?) AS k FROM documents WHERE collection = ? ORDER BY k IS NULL, k %s, id",
		order,
	)
	rows, err := d.sql.QueryContext(ctx, query, jsonPath(field), collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []domain.RawDocument
	for rows.Next() {
		var (
			doc  domain.RawDocument
			data string
			key  any
		)
		if err := rows.Scan(&doc.ID, &data, &key); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

// Get returns one document.
func (d *DB) Get(ctx context.Context, collection, id string) (domain.RawDocument, error) {
	var data string
	err := d.sql.QueryRowContext(ctx,
		"SELECT fields FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawDocument{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc := domain.RawDocument{ID: id}
	if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
		return domain.RawDocument{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

// Create inserts fields under a new id.
func (d *DB) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	_, err = d.sql.ExecContext(ctx,
		"INSERT INTO documents (collection, id, fields, updated_at) VALUES (?, ?, ?, ?)",
		collection, id, string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	return id, nil
}

// Replace overwrites the fields of an existing document.
func (d *DB) Replace(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := d.sql.ExecContext(ctx,
		"UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?",
		string(data), time.Now().UnixMilli(), collection, id,
	)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (d *DB) Delete(ctx context.Context, collection, id string) error {
	if _, err := d.sql.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// jsonPath quotes field as a JSON path member so names with dots or quotes
// address a single top-level key.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// --- SessionStorage ---

// SessionRepo implements domain.SessionStorage on the admin_sessions table.
type SessionRepo struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepo wraps a DB as a SessionStorage.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db, now: time.Now}
}

// Get returns the value stored at key.
func (r *SessionRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT value FROM admin_sessions WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)",
		key, r.now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set upserts value at key. A ttl <= 0 keeps the row until deleted.
func (r *SessionRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: r.now().Add(ttl).UnixMilli(), Valid: true}
	}
	_, err := r.db.sql.ExecContext(ctx,
		`INSERT INTO admin_sessions (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return err
}

// Delete deletes a key.
func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM admin_sessions WHERE key = ?", key)
	return err
}

// Keys lists the live keys starting with prefix, dropping expired rows first.
func (r *SessionRepo) Keys(ctx context.Context, prefix string) ([]string, error) {
	if _, err := r.db.sql.ExecContext(ctx, "DELETE FROM admin_sessions WHERE expires_at <= ?", r.now().UnixMilli()); err != nil {
		return nil, err
	}

	rows, err := r.db.sql.QueryContext(ctx,
		"SELECT key FROM admin_sessions WHERE instr(key, ?) = 1 ORDER BY key",
		prefix,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
