// Package surreal implements domain.DocumentStore on SurrealDB. Each
// collection is a table and each document a record keyed by a UUID string.
package surreal

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"portfolio/internal/domain"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

var _ domain.DocumentStore = (*Store)(nil)

// fieldName restricts ORDER BY identifiers, which SurrealQL cannot bind.
var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a SurrealDB-backed document store.
type Store struct {
	db *surrealdb.DB
}

// Options configures the connection.
type Options struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Open connects, signs in when credentials are given and selects the
// namespace and database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to surrealdb: %w", err)
	}
	if opts.Username != "" && opts.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": opts.Username,
			"pass": opts.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("authenticate: %w", err)
		}
	}
	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("use namespace/database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

// ListOrdered returns every record of collection ordered by field. Records
// without the field sort last.
func (s *Store) ListOrdered(ctx context.Context, collection, field string, dir domain.Direction) ([]domain.RawDocument, error) {
	if !fieldName.MatchString(field) {
		return nil, fmt.Errorf("invalid order field %q", field)
	}
	order := "ASC"
	if dir == domain.Descending {
		order = "DESC"
	}
	query := fmt.Sprintf("SELECT * FROM type::table($tb) ORDER BY %s %s", field, order)

	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, query, map[string]any{"tb": collection})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	var docs []domain.RawDocument
	if res != nil && len(*res) > 0 {
		for _, rec := range (*res)[0].Result {
			docs = append(docs, fromRecord(rec))
		}
	}
	// NONE ordering differs between server versions.
	slices.SortStableFunc(docs, func(a, b domain.RawDocument) int {
		_, aok := a.Fields[field]
		_, bok := b.Fields[field]
		switch {
		case aok == bok:
			return 0
		case aok:
			return -1
		default:
			return 1
		}
	})
	return docs, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, collection, id string) (domain.RawDocument, error) {
	rec, err := surrealdb.Select[map[string]any](ctx, s.db, models.NewRecordID(collection, id))
	if isNotFound(err) || (err == nil && (rec == nil || len(*rec) == 0)) {
		return domain.RawDocument{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc := fromRecord(*rec)
	doc.ID = id
	return doc, nil
}

// Create inserts fields under a new id.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if _, err := surrealdb.Create[map[string]any](ctx, s.db, models.NewRecordID(collection, id), toRecord(fields)); err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	return id, nil
}

// Replace overwrites the fields of an existing record.
func (s *Store) Replace(ctx context.Context, collection, id string, fields map[string]any) error {
	if _, err := s.Get(ctx, collection, id); err != nil {
		return err
	}
	if _, err := surrealdb.Update[map[string]any](ctx, s.db, models.NewRecordID(collection, id), toRecord(fields)); err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := surrealdb.Delete[map[string]any](ctx, s.db, models.NewRecordID(collection, id))
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Expected a single or multiple results but got 0")
}

// toRecord copies fields without the reserved id key.
func toRecord(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// fromRecord turns a decoded record into a RawDocument, unwrapping the
// SurrealDB value types the domain decoder does not know.
func fromRecord(rec map[string]any) domain.RawDocument {
	doc := domain.RawDocument{Fields: make(map[string]any, len(rec))}
	for k, v := range rec {
		if k == "id" {
			if id, ok := recordKey(v); ok {
				doc.ID = id
			}
			continue
		}
		doc.Fields[k] = plain(v)
	}
	return doc
}

func recordKey(v any) (string, bool) {
	switch r := v.(type) {
	case models.RecordID:
		return fmt.Sprint(r.ID), true
	case *models.RecordID:
		if r == nil {
			return "", false
		}
		return fmt.Sprint(r.ID), true
	case string:
		_, key, found := strings.Cut(r, ":")
		if !found {
			return r, true
		}
		return strings.Trim(key, "⟨⟩`"), true
	}
	return "", false
}

func plain(v any) any {
	switch t := v.(type) {
	case models.CustomDateTime:
		return t.Time.UTC()
	case *models.CustomDateTime:
		if t == nil {
			return nil
		}
		return t.Time.UTC()
	case models.RecordID:
		return fmt.Sprint(t.ID)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	}
	return v
}
