package adapthttp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"portfolio/internal/app"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const decisionContextKey contextKey = "decision"

// sessionCookie carries the admin session token.
const sessionCookie = "admin_session"

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func decisionFrom(ctx context.Context) app.Decision {
	d, _ := ctx.Value(decisionContextKey).(app.Decision)
	return d
}

// guardAPI admits admin API calls with a live session and answers 401
// otherwise. It does not extend the session.
func (s *Server) guardAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}

		d, err := s.guard.Check(r.Context(), token)
		if err != nil {
			s.logger.Warn("session check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, errors.New("session check unavailable"))
			return
		}
		if d.State != app.Permitted {
			s.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, errors.New("session expired"))
			return
		}

		ctx := context.WithValue(r.Context(), decisionContextKey, d)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// guardPage gates admin page navigation. A permitted navigation refreshes
// the session; a denied one redirects to the login page.
func (s *Server) guardPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := app.Decision{State: app.Denied}
		if token := sessionToken(r); token != "" {
			var err error
			d, err = s.guard.Evaluate(r.Context(), token)
			if err != nil {
				s.logger.Warn("session evaluation failed", "error", err)
				http.Error(w, "session check unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if d.State != app.Permitted {
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), decisionContextKey, d)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if rec.status >= http.StatusInternalServerError {
			s.logger.Error("request", attrs...)
			return
		}
		s.logger.Info("request", attrs...)
	})
}
