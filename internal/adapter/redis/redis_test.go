package redis

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"portfolio/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newStoreForTest(t *testing.T) (*miniredis.Miniredis, *SessionStore) {
	t.Helper()
	m := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		m.Close()
	})
	return m, NewSessionStore(client)
}

func TestSessionStoreGetSetDelete(t *testing.T) {
	m, store := newStoreForTest(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "adminSession:missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "adminSession:a", []byte(`{"uid":"u1"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := store.Get(ctx, "adminSession:a")
	if err != nil || string(v) != `{"uid":"u1"}` {
		t.Fatalf("get: %q %v", v, err)
	}
	if ttl := m.TTL("adminSession:a"); ttl != time.Minute {
		t.Errorf("ttl = %v", ttl)
	}

	m.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "adminSession:a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected key to expire, got %v", err)
	}

	_ = store.Set(ctx, "adminSession:b", []byte("x"), 0)
	if ttl := m.TTL("adminSession:b"); ttl != 0 {
		t.Errorf("expected no ttl, got %v", ttl)
	}
	if err := store.Delete(ctx, "adminSession:b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.Exists("adminSession:b") {
		t.Error("key not deleted")
	}
}

func TestSessionStoreKeys(t *testing.T) {
	_, store := newStoreForTest(t)
	ctx := context.Background()

	for i := range 250 {
		_ = store.Set(ctx, "adminSession:"+string(rune('a'+i%26))+time.Duration(i).String(), []byte("v"), time.Hour)
	}
	_ = store.Set(ctx, "other:x", []byte("v"), time.Hour)
	_ = store.Set(ctx, "admin*Session:x", []byte("v"), time.Hour)

	keys, err := store.Keys(ctx, "adminSession:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 250 {
		t.Fatalf("expected 250 keys, got %d", len(keys))
	}
	if slices.Contains(keys, "other:x") {
		t.Error("keys leaked another prefix")
	}

	keys, _ = store.Keys(ctx, "admin*")
	if len(keys) != 1 || keys[0] != "admin*Session:x" {
		t.Errorf("glob characters must match literally, got %v", keys)
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob(`a*b?[c]\`); got != `a\*b\?\[c\]\\` {
		t.Errorf("escapeGlob = %s", got)
	}
}
