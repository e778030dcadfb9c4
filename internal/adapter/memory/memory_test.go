package memory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portfolio/internal/domain"
)

func TestDocumentStore(t *testing.T) {
	db := New()
	ctx := context.Background()

	older, err := db.Create(ctx, "news", map[string]any{"title": "Older", "date": "2026-01-01T00:00:00.000Z"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	newer, _ := db.Create(ctx, "news", map[string]any{"title": "Newer", "date": time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)})
	undated, _ := db.Create(ctx, "news", map[string]any{"title": "Undated"})
	_, _ = db.Create(ctx, "blogPosts", map[string]any{"title": "Other collection"})

	docs, err := db.ListOrdered(ctx, "news", "date", domain.Descending)
	if err != nil {
		t.Fatalf("ListOrdered: %v", err)
	}
	if len(docs) != 3 || docs[0].ID != newer || docs[1].ID != older || docs[2].ID != undated {
		t.Fatalf("unexpected order: %+v", docs)
	}
	asc, _ := db.ListOrdered(ctx, "news", "date", domain.Ascending)
	if asc[0].ID != older || asc[2].ID != undated {
		t.Fatalf("unexpected ascending order: %+v", asc)
	}

	// Returned fields are copies.
	docs[0].Fields["title"] = "mutated"
	got, err := db.Get(ctx, "news", newer)
	if err != nil || got.Fields["title"] != "Newer" {
		t.Fatalf("Get: %+v %v", got, err)
	}

	if err := db.Replace(ctx, "news", newer, map[string]any{"title": "Replaced"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, _ = db.Get(ctx, "news", newer)
	if got.Fields["title"] != "Replaced" || got.Fields["date"] != nil {
		t.Errorf("replace should overwrite all fields: %v", got.Fields)
	}
	if err := db.Replace(ctx, "news", "missing", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := db.Delete(ctx, "news", newer); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get(ctx, "news", newer); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := db.Delete(ctx, "nowhere", "x"); err != nil {
		t.Errorf("delete of a missing document should succeed: %v", err)
	}
}

func TestUserRepository(t *testing.T) {
	users := New().NewUserRepo()
	ctx := context.Background()

	u, err := users.Create(ctx, "admin@example.com", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Error("expected an id")
	}
	if _, err := users.Create(ctx, "admin@example.com", "hash"); err == nil {
		t.Error("expected duplicate email to fail")
	}

	byEmail, _ := users.GetByEmail(ctx, "admin@example.com")
	byID, _ := users.GetByID(ctx, u.ID)
	if byEmail == nil || byID == nil || byEmail.ID != byID.ID {
		t.Errorf("lookups disagree: %v %v", byEmail, byID)
	}
	if missing, err := users.GetByEmail(ctx, "nobody@example.com"); missing != nil || err != nil {
		t.Errorf("expected nil, nil for missing user, got %v %v", missing, err)
	}
	if n, _ := users.Count(ctx); n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}

func TestSessionRepository(t *testing.T) {
	kv := New().NewSessionRepo()
	ctx := context.Background()

	if err := kv.Set(ctx, "adminSession:a", []byte("1"), time.Hour); err != nil {
		t.Fatal(err)
	}
	_ = kv.Set(ctx, "adminSession:b", []byte("2"), 0)
	_ = kv.Set(ctx, "adminSession:gone", []byte("3"), time.Nanosecond)
	_ = kv.Set(ctx, "other", []byte("4"), 0)
	time.Sleep(time.Millisecond)

	v, err := kv.Get(ctx, "adminSession:a")
	if err != nil || string(v) != "1" {
		t.Fatalf("Get: %q %v", v, err)
	}
	if _, err := kv.Get(ctx, "adminSession:gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected expired key to be gone, got %v", err)
	}

	keys, _ := kv.Keys(ctx, "adminSession:")
	if strings.Join(keys, ",") != "adminSession:a,adminSession:b" {
		t.Errorf("Keys = %v", keys)
	}

	_ = kv.Delete(ctx, "adminSession:a")
	if _, err := kv.Get(ctx, "adminSession:a"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBlobs(t *testing.T) {
	blobs := NewBlobs("/media/")
	ctx := context.Background()

	h, err := blobs.Upload(ctx, "newsImages/1_a.png", strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	url, err := blobs.URL(ctx, h)
	if err != nil || url != "/media/newsImages/1_a.png" {
		t.Fatalf("URL = %q, %v", url, err)
	}

	srv := httptest.NewServer(blobs)
	defer srv.Close()

	resp, err := http.Get(srv.URL + url)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "png-bytes" || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("serve: %d %q %q", resp.StatusCode, body, resp.Header.Get("Content-Type"))
	}

	if err := blobs.Delete(ctx, h.Path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := blobs.Delete(ctx, h.Path); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	resp, err = http.Get(srv.URL + url)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}
