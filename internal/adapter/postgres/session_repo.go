package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"portfolio/internal/domain"
)

var _ domain.SessionStorage = (*SessionRepo)(nil)

// SessionRepo implements domain.SessionStorage on the admin_sessions table.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionStorage.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Get returns the value stored at key.
func (r *SessionRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT value FROM admin_sessions WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)",
		key, time.Now(),
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
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}
	_, err := r.db.sql.ExecContext(ctx,
		`INSERT INTO admin_sessions (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt,
	)
	return err
}

// Delete deletes a session by key.
func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM admin_sessions WHERE key = $1", key)
	return err
}

// Keys lists the live keys starting with prefix, dropping expired rows first.
func (r *SessionRepo) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := r.DeleteExpired(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT key FROM admin_sessions WHERE key LIKE $1 ESCAPE '\' ORDER BY key`,
		likePrefix(prefix),
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

// DeleteExpired deletes all expired rows.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM admin_sessions WHERE expires_at <= $1", time.Now())
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix turns prefix into a LIKE pattern matching it literally.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
