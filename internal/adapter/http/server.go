package adapthttp

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"portfolio/internal/app"
	"portfolio/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/oauth2"
)

// Services are the application services the server routes to.
type Services struct {
	Loader   *app.ContentLoader
	Editor   *app.Editor
	Auth     *app.AuthService
	Sessions *app.SessionStore
	Guard    *app.Guard
}

// OIDCConfig holds single sign-on settings.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	loader   *app.ContentLoader
	editor   *app.Editor
	authSvc  *app.AuthService
	sessions *app.SessionStore
	guard    *app.Guard
	webDir   string
	logger   *slog.Logger

	oidcConfig     OIDCConfig
	media          http.Handler
	secureCookies  bool
	streamInterval time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithOIDC enables the SSO routes.
func WithOIDC(cfg OIDCConfig) Option {
	return func(s *Server) { s.oidcConfig = cfg }
}

// WithMedia serves h under /media/, for blob stores without a public URL.
func WithMedia(h http.Handler) Option {
	return func(s *Server) { s.media = h }
}

// WithSecureCookies marks session cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secureCookies = secure }
}

// WithStreamInterval sets how often the session stream pushes a status.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// New creates a Server wired to the given application services.
func New(svc Services, webDir string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		loader:         svc.Loader,
		editor:         svc.Editor,
		authSvc:        svc.Auth,
		sessions:       svc.Sessions,
		guard:          svc.Guard,
		webDir:         webDir,
		logger:         logger,
		streamInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.HandleFunc("GET /api/config", s.handleConfig)

	mux.HandleFunc("GET /api/news", s.handleList(domain.KindNews, "category"))
	mux.HandleFunc("GET /api/news/{key}", s.handleDetail(domain.KindNews))
	mux.HandleFunc("GET /api/blog", s.handleList(domain.KindBlog, "tag"))
	mux.HandleFunc("GET /api/blog/{key}", s.handleDetail(domain.KindBlog))

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/setup", s.handleSetupUser)
	mux.HandleFunc("GET /api/auth/sso/login", s.handleSSOLogin)
	mux.HandleFunc("GET /api/auth/sso/callback", s.handleSSOCallback)

	mux.Handle("GET /api/admin/session", s.guardAPI(http.HandlerFunc(s.handleSessionStatus)))
	mux.Handle("POST /api/admin/session/activity", s.guardAPI(http.HandlerFunc(s.handleActivity)))
	mux.Handle("GET /api/admin/session/stream", s.guardAPI(http.HandlerFunc(s.handleSessionStream)))
	mux.Handle("GET /api/admin/{kind}", s.guardAPI(http.HandlerFunc(s.handleAdminList)))
	mux.Handle("POST /api/admin/{kind}", s.guardAPI(http.HandlerFunc(s.handleCreate)))
	mux.Handle("PUT /api/admin/{kind}/{id}", s.guardAPI(http.HandlerFunc(s.handleUpdate)))
	mux.Handle("DELETE /api/admin/{kind}/{id}", s.guardAPI(http.HandlerFunc(s.handleDelete)))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})

	if s.media != nil {
		mux.Handle("GET /media/", s.media)
	}

	spa := spaFromDisk(s.webDir)
	mux.Handle("/admin", s.guardPage(spa))
	mux.Handle("/admin/", s.guardPage(spa))
	mux.Handle("/", spa)

	var h http.Handler = withNoCache(mux)
	h = middleware.Recoverer(h)
	h = s.loggingMiddleware(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)
	return h
}
