package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"portfolio/internal/domain"

	"github.com/google/uuid"
)

func TestLikePrefix(t *testing.T) {
	tests := map[string]string{
		"adminSession:": "adminSession:%",
		"50%_off":       `50\%\_off%`,
		`back\slash`:    `back\\slash%`,
		"":              "%",
	}
	for in, want := range tests {
		if got := likePrefix(in); got != want {
			t.Errorf("likePrefix(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestOrderSQL(t *testing.T) {
	if orderSQL(domain.Descending) != "DESC" || orderSQL(domain.Ascending) != "ASC" {
		t.Fatal("unexpected order keywords")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Error("nil is not a violation")
	}
}

// openTestDB connects to the database named by POSTGRES_TEST_URL, skipping
// the test when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	db, err := Open(url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDocumentRepoIntegration(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentRepo(db)
	ctx := context.Background()
	coll := "test_" + uuid.NewString()

	older, err := repo.Create(ctx, coll, map[string]any{"title": "Older", "date": "2026-01-01T00:00:00.000Z"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	newer, _ := repo.Create(ctx, coll, map[string]any{"title": "Newer", "date": "2026-02-01T00:00:00.000Z"})
	t.Cleanup(func() {
		_ = repo.Delete(ctx, coll, older)
		_ = repo.Delete(ctx, coll, newer)
	})

	docs, err := repo.ListOrdered(ctx, coll, "date", domain.Descending)
	if err != nil || len(docs) != 2 || docs[0].ID != newer {
		t.Fatalf("list: %+v %v", docs, err)
	}
	if err := repo.Replace(ctx, coll, older, map[string]any{"title": "Renamed"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	doc, err := repo.Get(ctx, coll, older)
	if err != nil || doc.Fields["title"] != "Renamed" {
		t.Fatalf("get: %+v %v", doc, err)
	}
	if err := repo.Replace(ctx, coll, "missing", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepoIntegration(t *testing.T) {
	db := openTestDB(t)
	kv := NewSessionRepo(db)
	ctx := context.Background()
	prefix := "test_" + uuid.NewString() + ":"

	if err := kv.Set(ctx, prefix+"a", []byte(`{"uid":"u1"}`), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, prefix+"a", []byte(`{"uid":"u2"}`), time.Hour); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	t.Cleanup(func() { _ = kv.Delete(ctx, prefix+"a") })

	v, err := kv.Get(ctx, prefix+"a")
	if err != nil || string(v) != `{"uid":"u2"}` {
		t.Fatalf("get: %q %v", v, err)
	}
	keys, err := kv.Keys(ctx, prefix)
	if err != nil || len(keys) != 1 {
		t.Fatalf("keys: %v %v", keys, err)
	}
	_ = kv.Delete(ctx, prefix+"a")
	if _, err := kv.Get(ctx, prefix+"a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
