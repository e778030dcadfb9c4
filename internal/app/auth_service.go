// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"portfolio/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotAllowed indicates that an externally authenticated email is not an admin.
	ErrNotAllowed = errors.New("account is not allowed to administer this site")
	// ErrUsersExist is returned when bootstrapping an admin after one already exists.
	ErrUsersExist = errors.New("users already exist")
	// ErrEmailRequired is returned when bootstrapping without an email.
	ErrEmailRequired = errors.New("email is required")
	// ErrWeakPassword rejects bootstrap passwords that are too short.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// AuthService is the credential-based auth provider. It checks bcrypt
// password hashes stored in a UserRepository and tracks which principals are
// currently signed in.
type AuthService struct {
	users   domain.UserRepository
	allowed map[string]struct{}

	mu      sync.Mutex
	active  map[string]domain.Principal
	subs    map[int]func(domain.PrincipalChange)
	nextSub int
}

var _ domain.AuthProvider = (*AuthService)(nil)

// NewAuthService creates a new authentication service. When allowedEmails is
// non-empty only those addresses may sign in through SignInExternal.
func NewAuthService(users domain.UserRepository, allowedEmails ...string) *AuthService {
	allowed := make(map[string]struct{}, len(allowedEmails))
	for _, e := range allowedEmails {
		if e = normalizeEmail(e); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &AuthService{
		users:   users,
		allowed: allowed,
		active:  make(map[string]domain.Principal),
		subs:    make(map[int]func(domain.PrincipalChange)),
	}
}

// SignIn authenticates an admin by email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (domain.Principal, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil || user == nil || user.PasswordHash == "" {
		return domain.Principal{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Principal{}, ErrInvalidCredentials
	}

	p := domain.Principal{UID: user.ID, Email: user.Email}
	s.admit(p)
	return p, nil
}

// SignInExternal signs in a user already authenticated elsewhere (e.g. via
// SSO), provisioning the account on first use.
func (s *AuthService) SignInExternal(ctx context.Context, email string) (domain.Principal, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.Principal{}, ErrInvalidCredentials
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[email]; !ok {
			return domain.Principal{}, ErrNotAllowed
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		// SSO accounts get an empty hash so password sign-in never matches.
		user, err = s.users.Create(ctx, email, "")
		if err != nil {
			// Lost a race with a concurrent callback for the same email.
			user, err = s.users.GetByEmail(ctx, email)
			if err != nil || user == nil {
				return domain.Principal{}, fmt.Errorf("provision user: %w", err)
			}
		}
	}

	p := domain.Principal{UID: user.ID, Email: user.Email}
	s.admit(p)
	return p, nil
}

// SignOut ends the principal's sign-in. Signing out an absent principal is a
// no-op.
func (s *AuthService) SignOut(_ context.Context, uid string) error {
	s.mu.Lock()
	_, ok := s.active[uid]
	delete(s.active, uid)
	s.mu.Unlock()

	if ok {
		s.notify(domain.PrincipalChange{UID: uid})
	}
	return nil
}

// CurrentPrincipal returns the signed-in principal for uid, or nil.
func (s *AuthService) CurrentPrincipal(_ context.Context, uid string) (*domain.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.active[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// OnPrincipalChanged registers fn for sign-in and sign-out events.
func (s *AuthService) OnPrincipalChanged(fn func(domain.PrincipalChange)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// CreateInitialUser creates the first admin if no users exist.
func (s *AuthService) CreateInitialUser(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		return ErrUsersExist
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = s.users.Create(ctx, email, string(hash))
	return err
}

func (s *AuthService) admit(p domain.Principal) {
	s.mu.Lock()
	s.active[p.UID] = p
	s.mu.Unlock()

	s.notify(domain.PrincipalChange{UID: p.UID, Principal: &p})
}

// notify calls subscribers outside the lock so they may call back into s.
func (s *AuthService) notify(c domain.PrincipalChange) {
	s.mu.Lock()
	fns := make([]func(domain.PrincipalChange), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
