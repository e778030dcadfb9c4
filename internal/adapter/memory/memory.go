// Package memory implements in-memory stores for development and testing.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"portfolio/internal/domain"

	"github.com/google/uuid"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	docs     map[string]map[string]map[string]any
	users    []*domain.User
	sessions map[string]entry
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		docs:     make(map[string]map[string]map[string]any),
		sessions: make(map[string]entry),
	}
}

// Ensure interfaces are met.
var _ domain.DocumentStore = (*DB)(nil)
var _ domain.UserRepository = (*UserRepo)(nil)
var _ domain.SessionStorage = (*SessionRepo)(nil)

// --- DocumentStore ---

// ListOrdered returns every document of collection sorted by field. Documents
// missing the field sort last in either direction.
func (db *DB) ListOrdered(ctx context.Context, collection, field string, dir domain.Direction) ([]domain.RawDocument, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.RawDocument, 0, len(db.docs[collection]))
	for id, f := range db.docs[collection] {
		out = append(out, domain.RawDocument{ID: id, Fields: maps.Clone(f)})
	}
	slices.SortStableFunc(out, func(a, b domain.RawDocument) int {
		av, aok := a.Fields[field]
		bv, bok := b.Fields[field]
		switch {
		case !aok && !bok:
			return strings.Compare(a.ID, b.ID)
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := compareValues(av, bv)
		if dir == domain.Descending {
			c = -c
		}
		if c == 0 {
			return strings.Compare(a.ID, b.ID)
		}
		return c
	})
	return out, nil
}

func compareValues(a, b any) int {
	at, aok := domain.NormalizeTime(a)
	bt, bok := domain.NormalizeTime(b)
	if aok && bok {
		return at.Compare(bt)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Get returns one document.
func (db *DB) Get(ctx context.Context, collection, id string) (domain.RawDocument, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, ok := db.docs[collection][id]
	if !ok {
		return domain.RawDocument{}, domain.ErrNotFound
	}
	return domain.RawDocument{ID: id, Fields: maps.Clone(f)}, nil
}

// Create stores fields under a new id.
func (db *DB) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.docs[collection] == nil {
		db.docs[collection] = make(map[string]map[string]any)
	}
	id := uuid.NewString()
	db.docs[collection][id] = maps.Clone(fields)
	return id, nil
}

// Replace overwrites an existing document.
func (db *DB) Replace(ctx context.Context, collection, id string, fields map[string]any) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.docs[collection][id]; !ok {
		return domain.ErrNotFound
	}
	db.docs[collection][id] = maps.Clone(fields)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.docs[collection], id)
	return nil
}

// --- UserRepository ---

// UserRepo implements user persistence.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new user repository.
func (db *DB) NewUserRepo() *UserRepo {
	return &UserRepo{db: db}
}

// GetByEmail retrieves a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return nil, errors.New("user already exists")
		}
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.db.users = append(r.db.users, u)
	return u, nil
}

// Count returns the total number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.users), nil
}

// --- SessionStorage ---

// SessionRepo is a key/value store for session records honouring ttls.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Get returns the value stored at key.
func (r *SessionRepo) Get(ctx context.Context, key string) ([]byte, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.sessions[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(r.db.sessions, key)
		return nil, domain.ErrNotFound
	}
	return slices.Clone(e.value), nil
}

// Set stores value at key. A ttl <= 0 keeps the key until deleted.
func (r *SessionRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e := entry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	r.db.sessions[key] = e
	return nil
}

// Delete deletes a key.
func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, key)
	return nil
}

// Keys lists the live keys starting with prefix.
func (r *SessionRepo) Keys(ctx context.Context, prefix string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now()
	var keys []string
	for k, e := range r.db.sessions {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(r.db.sessions, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
