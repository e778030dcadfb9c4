package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"portfolio/internal/adapter/memory"
	"portfolio/internal/adapter/minio"
	"portfolio/internal/adapter/postgres"
	"portfolio/internal/adapter/redis"
	"portfolio/internal/adapter/sqlite"
	"portfolio/internal/adapter/surreal"
	"portfolio/internal/config"
	"portfolio/internal/domain"
)

// mediaPrefix is where the in-memory blob store is served.
const mediaPrefix = "/media"

// stores holds the configured adapters behind each port.
type stores struct {
	docs     domain.DocumentStore
	sessions domain.SessionStorage
	blobs    domain.BlobStore
	users    domain.UserRepository
	// media serves blobs when the blob store has no public address.
	media http.Handler

	closers []func() error
}

// openStores connects the backends named in cfg. Backends shared by
// several ports are opened once.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *stores, err error) {
	st := &stores{}
	defer func() {
		if err != nil {
			st.Close(logger)
		}
	}()

	mem := memory.New()

	var pg *postgres.DB
	openPostgres := func() (*postgres.DB, error) {
		if pg != nil {
			return pg, nil
		}
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		st.closers = append(st.closers, db.Close)
		logger.Info("connected to postgres")
		pg = db
		return pg, nil
	}

	var lite *sqlite.DB
	openSQLite := func() (*sqlite.DB, error) {
		if lite != nil {
			return lite, nil
		}
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		st.closers = append(st.closers, db.Close)
		logger.Info("opened sqlite database", "path", cfg.SQLitePath)
		lite = db
		return lite, nil
	}

	switch cfg.DocumentStore {
	case config.BackendPostgres:
		db, err := openPostgres()
		if err != nil {
			return nil, err
		}
		st.docs = postgres.NewDocumentRepo(db)
	case config.BackendSQLite:
		db, err := openSQLite()
		if err != nil {
			return nil, err
		}
		st.docs = db
	case config.BackendSurrealDB:
		s, err := surreal.Open(ctx, surreal.Options{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNS,
			Database:  cfg.SurrealDB,
			Username:  cfg.SurrealUser,
			Password:  cfg.SurrealPass,
		})
		if err != nil {
			return nil, fmt.Errorf("open surrealdb: %w", err)
		}
		st.closers = append(st.closers, func() error { return s.Close(context.Background()) })
		logger.Info("connected to surrealdb", "namespace", cfg.SurrealNS, "database", cfg.SurrealDB)
		st.docs = s
	default:
		st.docs = mem
	}

	switch cfg.SessionStore {
	case config.BackendRedis:
		client, err := redis.Dial(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		st.closers = append(st.closers, client.Close)
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
		st.sessions = redis.NewSessionStore(client)
	case config.BackendPostgres:
		db, err := openPostgres()
		if err != nil {
			return nil, err
		}
		st.sessions = postgres.NewSessionRepo(db)
	case config.BackendSQLite:
		db, err := openSQLite()
		if err != nil {
			return nil, err
		}
		st.sessions = sqlite.NewSessionRepo(db)
	default:
		st.sessions = mem.NewSessionRepo()
	}

	switch cfg.BlobStore {
	case config.BackendMinIO:
		b, err := minio.New(ctx, minio.Options{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("open minio: %w", err)
		}
		logger.Info("connected to minio", "endpoint", cfg.MinIOEndpoint, "bucket", cfg.MinIOBucket)
		st.blobs = b
	default:
		b := memory.NewBlobs(mediaPrefix)
		st.blobs = b
		st.media = b
	}

	// Accounts live next to the documents when a database is configured.
	if cfg.DatabaseURL != "" {
		db, err := openPostgres()
		if err != nil {
			return nil, err
		}
		st.users = postgres.NewUserRepo(db)
	} else {
		st.users = mem.NewUserRepo()
	}

	return st, nil
}

// Close closes every opened backend in reverse order.
func (s *stores) Close(logger *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("close store failed", "error", err)
		}
	}
	s.closers = nil
}
