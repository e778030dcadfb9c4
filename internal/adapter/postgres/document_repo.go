package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"portfolio/internal/domain"

	"github.com/google/uuid"
)

var _ domain.DocumentStore = (*DocumentRepo)(nil)

// DocumentRepo stores documents as JSONB rows keyed by collection and id.
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo wraps a DB as a DocumentStore.
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// ListOrdered returns every document of collection ordered by the text value
// of field. Documents without the field sort last.
func (r *DocumentRepo) ListOrdered(ctx context.Context, collection, field string, dir domain.Direction) ([]domain.RawDocument, error) {
	query := fmt.Sprintf(
		"SELECT id, fields FROM documents WHERE collection = $1 ORDER BY fields->>$2 %s NULLS LAST, id",
		orderSQL(dir),
	)
	rows, err := r.db.sql.QueryContext(ctx, query, collection, field)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []domain.RawDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

// Get returns one document.
func (r *DocumentRepo) Get(ctx context.Context, collection, id string) (domain.RawDocument, error) {
	row := r.db.sql.QueryRowContext(ctx,
		"SELECT id, fields FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawDocument{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Create inserts fields under a new id.
func (r *DocumentRepo) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	_, err = r.db.sql.ExecContext(ctx,
		"INSERT INTO documents (collection, id, fields, updated_at) VALUES ($1, $2, $3, $4)",
		collection, id, data, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	return id, nil
}

// Replace overwrites the fields of an existing document.
func (r *DocumentRepo) Replace(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := r.db.sql.ExecContext(ctx,
		"UPDATE documents SET fields = $3, updated_at = $4 WHERE collection = $1 AND id = $2",
		collection, id, data, time.Now().UTC(),
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
func (r *DocumentRepo) Delete(ctx context.Context, collection, id string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (domain.RawDocument, error) {
	var (
		doc  domain.RawDocument
		data []byte
	)
	if err := s.Scan(&doc.ID, &data); err != nil {
		return domain.RawDocument{}, err
	}
	if err := json.Unmarshal(data, &doc.Fields); err != nil {
		return domain.RawDocument{}, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return doc, nil
}

func orderSQL(dir domain.Direction) string {
	if dir == domain.Descending {
		return "DESC"
	}
	return "ASC"
}
