package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by ports when the addressed record does not exist.
var ErrNotFound = errors.New("not found")

// SessionSchemaVersion is written into every session record. Records without
// a version predate it and are read as version 1.
const SessionSchemaVersion = 1

// SessionRecord is the durable proof that an admin principal is logged in.
// Timestamps are milliseconds since the Unix epoch.
type SessionRecord struct {
	Version   int    `json:"v"`
	UID       string `json:"uid"`
	Email     string `json:"email"`
	LoginAt   int64  `json:"loginAt,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expires returns ExpiresAt as a time.Time.
func (r SessionRecord) Expires() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// SessionStorage is a small key/value port for session records. Get returns
// ErrNotFound for missing keys. A ttl <= 0 means the key never expires on its
// own.
type SessionStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
