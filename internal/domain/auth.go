// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// User represents an admin account known to the credential provider.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal is the identity returned by the auth provider for a signed-in user.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// PrincipalChange is emitted whenever a principal signs in or out. Principal
// is nil when UID no longer has an active sign-in.
type PrincipalChange struct {
	UID       string
	Principal *Principal
}

// UserRepository defines the port for user persistence operations.
// Lookups return (nil, nil) when no user matches.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, email, passwordHash string) (*User, error)
	Count(ctx context.Context) (int, error)
}

// AuthProvider is the port to whatever service signs admins in.
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (Principal, error)
	SignOut(ctx context.Context, uid string) error
	// CurrentPrincipal returns nil when uid has no active sign-in.
	CurrentPrincipal(ctx context.Context, uid string) (*Principal, error)
	// OnPrincipalChanged registers fn and returns a func that removes it.
	OnPrincipalChanged(fn func(PrincipalChange)) (unsubscribe func())
}
