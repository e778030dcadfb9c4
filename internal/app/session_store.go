package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"portfolio/internal/domain"
)

const (
	// SessionDuration is how long an admin session lives without activity.
	SessionDuration = 2 * time.Hour
	// RefreshThreshold is the remaining lifetime below which activity
	// extends a session.
	RefreshThreshold = 10 * time.Minute

	sessionKeyPrefix = "adminSession:"

	// storageGrace keeps expired records in storage past their expiry so a
	// sweep still sees those nobody read in the meantime.
	storageGrace = 5 * time.Minute
)

// SessionStore owns admin session records. Every operation holds the store
// mutex across its read-modify-write of a record.
type SessionStore struct {
	storage  domain.SessionStorage
	duration time.Duration
	now      func() time.Time

	mu sync.Mutex
	// expired holds records removed by lazy expiry until Reap hands them out.
	expired []domain.SessionRecord
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// WithSessionDuration overrides SessionDuration.
func WithSessionDuration(d time.Duration) SessionOption {
	return func(s *SessionStore) {
		if d > 0 {
			s.duration = d
		}
	}
}

// NewSessionStore creates a store persisting records in storage.
func NewSessionStore(storage domain.SessionStorage, opts ...SessionOption) *SessionStore {
	s := &SessionStore{storage: storage, duration: SessionDuration, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Duration is the lifetime given to new and refreshed sessions.
func (s *SessionStore) Duration() time.Duration { return s.duration }

// Create writes a new session for p and returns the token addressing it.
func (s *SessionStore) Create(ctx context.Context, p domain.Principal) (string, domain.SessionRecord, error) {
	token, err := generateToken()
	if err != nil {
		return "", domain.SessionRecord{}, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := domain.SessionRecord{
		Version:   domain.SessionSchemaVersion,
		UID:       p.UID,
		Email:     p.Email,
		LoginAt:   now.UnixMilli(),
		ExpiresAt: now.Add(s.duration).UnixMilli(),
	}
	if err := s.write(ctx, sessionKey(token), rec, now); err != nil {
		return "", domain.SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return token, rec, nil
}

// Read returns the live session for token, or nil when there is none. An
// expired or unreadable record is deleted before Read returns.
func (s *SessionStore) Read(ctx context.Context, token string) (*domain.SessionRecord, error) {
	if token == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, live, err := s.load(ctx, sessionKey(token), s.now())
	if err != nil || !live {
		return nil, err
	}
	return &rec, nil
}

// Refresh extends a live session to now + duration and returns the updated
// record. It is a no-op returning nil when the session is absent or expired.
func (s *SessionStore) Refresh(ctx context.Context, token string) (*domain.SessionRecord, error) {
	if token == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := sessionKey(token)
	rec, live, err := s.load(ctx, key, now)
	if err != nil || !live {
		return nil, err
	}
	rec.ExpiresAt = now.Add(s.duration).UnixMilli()
	if err := s.write(ctx, key, rec, now); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return &rec, nil
}

// RefreshIfNeeded refreshes the session only when its remaining lifetime is
// at most threshold. It reports whether a refresh happened.
func (s *SessionStore) RefreshIfNeeded(ctx context.Context, token string, threshold time.Duration) (bool, error) {
	if token == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := sessionKey(token)
	rec, live, err := s.load(ctx, key, now)
	if err != nil || !live {
		return false, err
	}
	if rec.Expires().Sub(now) > threshold {
		return false, nil
	}
	rec.ExpiresAt = now.Add(s.duration).UnixMilli()
	if err := s.write(ctx, key, rec, now); err != nil {
		return false, fmt.Errorf("refresh session: %w", err)
	}
	return true, nil
}

// Invalidate deletes the session unconditionally.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx, sessionKey(token)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// IsValid reports whether token addresses a live session. Storage errors
// count as invalid.
func (s *SessionStore) IsValid(ctx context.Context, token string) bool {
	rec, err := s.Read(ctx, token)
	return err == nil && rec != nil
}

// TimeRemaining is max(0, expiresAt - now), or 0 without a live session.
func (s *SessionStore) TimeRemaining(ctx context.Context, token string) time.Duration {
	rec, err := s.Read(ctx, token)
	if err != nil || rec == nil {
		return 0
	}
	return s.Remaining(*rec)
}

// Remaining is the lifetime left on rec at the store's current time.
func (s *SessionStore) Remaining(rec domain.SessionRecord) time.Duration {
	return max(0, rec.Expires().Sub(s.now()))
}

// Reap reads every stored session so that lazy expiry removes the dead ones,
// and returns every record that expired since the last Reap, including those
// removed earlier by other reads.
func (s *SessionStore) Reap(ctx context.Context) ([]domain.SessionRecord, error) {
	keys, err := s.storage.Keys(ctx, sessionKeyPrefix)
	if err == nil {
		for _, key := range keys {
			s.mu.Lock()
			_, _, err = s.load(ctx, key, s.now())
			s.mu.Unlock()
			if err != nil {
				break
			}
		}
	} else {
		err = fmt.Errorf("list sessions: %w", err)
	}

	s.mu.Lock()
	expired := s.expired
	s.expired = nil
	s.mu.Unlock()
	return expired, err
}

// HasLive reports whether uid still has at least one live session.
func (s *SessionStore) HasLive(ctx context.Context, uid string) (bool, error) {
	keys, err := s.storage.Keys(ctx, sessionKeyPrefix)
	if err != nil {
		return false, fmt.Errorf("list sessions: %w", err)
	}
	for _, key := range keys {
		s.mu.Lock()
		rec, live, err := s.load(ctx, key, s.now())
		s.mu.Unlock()
		if err != nil {
			return false, err
		}
		if live && rec.UID == uid {
			return true, nil
		}
	}
	return false, nil
}

// InvalidatePrincipal deletes every session belonging to uid and returns how
// many were removed.
func (s *SessionStore) InvalidatePrincipal(ctx context.Context, uid string) (int, error) {
	keys, err := s.storage.Keys(ctx, sessionKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	n := 0
	for _, key := range keys {
		s.mu.Lock()
		rec, live, err := s.load(ctx, key, s.now())
		if err == nil && live && rec.UID == uid {
			err = s.storage.Delete(ctx, key)
			if err == nil {
				n++
			}
		}
		s.mu.Unlock()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return n, fmt.Errorf("invalidate sessions: %w", err)
		}
	}
	return n, nil
}

// load fetches and decodes the record at key. live is false when the record
// is missing, unreadable or expired; the latter two are deleted. An expired
// record is queued for Reap and still returned in rec. Callers hold s.mu.
func (s *SessionStore) load(ctx context.Context, key string, now time.Time) (rec domain.SessionRecord, live bool, err error) {
	data, err := s.storage.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("read session: %w", err)
	}

	if err := json.Unmarshal(data, &rec); err != nil || rec.UID == "" || rec.Version > domain.SessionSchemaVersion {
		return domain.SessionRecord{}, false, s.discard(ctx, key)
	}
	if rec.Version == 0 {
		rec.Version = domain.SessionSchemaVersion
	}
	if rec.ExpiresAt <= now.UnixMilli() {
		if err := s.discard(ctx, key); err != nil {
			return rec, false, err
		}
		s.expired = append(s.expired, rec)
		return rec, false, nil
	}
	return rec, true, nil
}

func (s *SessionStore) write(ctx context.Context, key string, rec domain.SessionRecord, now time.Time) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, key, data, rec.Expires().Sub(now)+storageGrace)
}

func (s *SessionStore) discard(ctx context.Context, key string) error {
	if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// FormatRemaining renders d as whole hours and minutes, rounding down:
// "2h 5m", "45m", "0m".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	h, m := minutes/60, minutes%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
