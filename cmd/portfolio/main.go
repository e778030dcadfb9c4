package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "portfolio/internal/adapter/http"
	"portfolio/internal/app"
	"portfolio/internal/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close(logger)

	authSvc := app.NewAuthService(st.users, cfg.AdminEmails...)
	if cfg.AdminEmail != "" {
		err := authSvc.CreateInitialUser(ctx, cfg.AdminEmail, cfg.AdminPassword)
		switch {
		case errors.Is(err, app.ErrUsersExist):
		case err != nil:
			return fmt.Errorf("bootstrap admin: %w", err)
		default:
			logger.Info("bootstrapped admin user", "email", cfg.AdminEmail)
		}
	}

	sessions := app.NewSessionStore(st.sessions, app.WithSessionDuration(cfg.SessionDuration))
	guard := app.NewGuard(sessions, authSvc, logger,
		app.WithSweepInterval(cfg.SessionSweepInterval),
		app.WithRefreshThreshold(cfg.SessionRefreshThreshold),
	)
	go guard.Run(ctx)

	opts := []adapthttp.Option{adapthttp.WithSecureCookies(cfg.CookieSecure)}
	if st.media != nil {
		opts = append(opts, adapthttp.WithMedia(st.media))
	}
	if cfg.OIDCEnabled() {
		oidcCfg, err := newOIDCConfig(ctx, cfg)
		if err != nil {
			return err
		}
		opts = append(opts, adapthttp.WithOIDC(oidcCfg))
	}

	srv := adapthttp.New(adapthttp.Services{
		Loader:   app.NewContentLoader(st.docs, logger),
		Editor:   app.NewEditor(st.docs, st.blobs, logger),
		Auth:     authSvc,
		Sessions: sessions,
		Guard:    guard,
	}, cfg.WebDir, logger, opts...)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("server started",
		"addr", cfg.Addr,
		"document_store", cfg.DocumentStore,
		"session_store", cfg.SessionStore,
		"blob_store", cfg.BlobStore,
		"sso_enabled", cfg.OIDCEnabled(),
	)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}
	return nil
}

func newOIDCConfig(ctx context.Context, cfg *config.Config) (adapthttp.OIDCConfig, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("discover oidc provider: %w", err)
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}
