package app

import (
	"context"
	"log/slog"
	"time"

	"portfolio/internal/domain"
)

// SweepInterval is how often the guard looks for sessions that ran out.
const SweepInterval = time.Minute

// GuardState is the outcome of a guard evaluation.
type GuardState int

const (
	// Pending is the state before the first evaluation completes.
	Pending GuardState = iota
	Permitted
	Denied
)

func (s GuardState) String() string {
	switch s {
	case Permitted:
		return "permitted"
	case Denied:
		return "denied"
	default:
		return "pending"
	}
}

// Decision is the result of Guard.Evaluate.
type Decision struct {
	State     GuardState
	Token     string
	Session   *domain.SessionRecord
	Remaining time.Duration
}

// Guard decides whether a request may reach protected admin content and
// keeps sessions reconciled with the auth provider.
type Guard struct {
	sessions  *SessionStore
	auth      domain.AuthProvider
	logger    *slog.Logger
	interval  time.Duration
	threshold time.Duration
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithSweepInterval overrides SweepInterval.
func WithSweepInterval(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithRefreshThreshold overrides RefreshThreshold.
func WithRefreshThreshold(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.threshold = d
		}
	}
}

// NewGuard creates a guard over sessions and auth.
func NewGuard(sessions *SessionStore, auth domain.AuthProvider, logger *slog.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		sessions:  sessions,
		auth:      auth,
		logger:    logger,
		interval:  SweepInterval,
		threshold: RefreshThreshold,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate permits the request iff the session's principal is still signed
// in at the provider and the session is live. A permitted session is
// refreshed; a denied one is invalidated. On a collaborator error the state
// stays Pending.
func (g *Guard) Evaluate(ctx context.Context, token string) (Decision, error) {
	return g.evaluate(ctx, token, true)
}

// Check is Evaluate without the refresh. Polling callers use it so that
// asking about a session does not keep it alive.
func (g *Guard) Check(ctx context.Context, token string) (Decision, error) {
	return g.evaluate(ctx, token, false)
}

func (g *Guard) evaluate(ctx context.Context, token string, refresh bool) (Decision, error) {
	rec, err := g.sessions.Read(ctx, token)
	if err != nil {
		return Decision{State: Pending}, err
	}
	if rec == nil {
		return g.deny(ctx, token)
	}

	p, err := g.auth.CurrentPrincipal(ctx, rec.UID)
	if err != nil {
		return Decision{State: Pending}, err
	}
	if p == nil {
		return g.deny(ctx, token)
	}

	if refresh {
		rec, err = g.sessions.Refresh(ctx, token)
		if err != nil {
			return Decision{State: Pending}, err
		}
		if rec == nil {
			// Expired between the read and the refresh.
			return g.deny(ctx, token)
		}
	}
	return Decision{
		State:     Permitted,
		Token:     token,
		Session:   rec,
		Remaining: g.sessions.Remaining(*rec),
	}, nil
}

func (g *Guard) deny(ctx context.Context, token string) (Decision, error) {
	if err := g.sessions.Invalidate(ctx, token); err != nil {
		return Decision{State: Pending}, err
	}
	return Decision{State: Denied}, nil
}

// Activity extends the session when it is close to expiry. It reports
// whether the session was refreshed.
func (g *Guard) Activity(ctx context.Context, token string) (bool, error) {
	return g.sessions.RefreshIfNeeded(ctx, token, g.threshold)
}

// Run keeps sessions reconciled until ctx is done: a sign-out at the
// provider invalidates the principal's sessions, and once per interval
// sessions that ran out are removed and their principal signed out.
func (g *Guard) Run(ctx context.Context) {
	bg := context.WithoutCancel(ctx)
	unsubscribe := g.auth.OnPrincipalChanged(func(c domain.PrincipalChange) {
		if c.Principal != nil {
			return
		}
		n, err := g.sessions.InvalidatePrincipal(bg, c.UID)
		if err != nil {
			g.logger.Warn("invalidate sessions after sign-out failed", "uid", c.UID, "error", err)
			return
		}
		if n > 0 {
			g.logger.Info("sessions invalidated after sign-out", "uid", c.UID, "count", n)
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep(ctx)
		}
	}
}

// Sweep removes sessions whose time ran out and signs their principals out
// of the provider, unless the principal still has another live session. It
// returns the number of expired sessions.
func (g *Guard) Sweep(ctx context.Context) int {
	expired, err := g.sessions.Reap(ctx)
	if err != nil {
		g.logger.Warn("session sweep failed", "error", err)
	}

	done := make(map[string]bool, len(expired))
	for _, rec := range expired {
		g.logger.Info("admin session expired", "uid", rec.UID, "email", rec.Email)
		if done[rec.UID] {
			continue
		}
		done[rec.UID] = true

		live, err := g.sessions.HasLive(ctx, rec.UID)
		if err != nil {
			g.logger.Warn("session lookup after expiry failed", "uid", rec.UID, "error", err)
			continue
		}
		if live {
			continue
		}
		if err := g.auth.SignOut(ctx, rec.UID); err != nil {
			g.logger.Warn("sign out after expiry failed", "uid", rec.UID, "error", err)
		}
	}
	return len(expired)
}
