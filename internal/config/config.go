// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the *_STORE variables.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendSurrealDB = "surrealdb"
	BackendRedis     = "redis"
	BackendMinIO     = "minio"
)

type Config struct {
	Addr   string
	WebDir string

	DocumentStore string
	SessionStore  string
	BlobStore     string

	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPublicURL string

	SurrealURL  string
	SurrealNS   string
	SurrealDB   string
	SurrealUser string
	SurrealPass string

	AdminEmail    string
	AdminPassword string
	AdminEmails   []string

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	SessionDuration         time.Duration
	SessionRefreshThreshold time.Duration
	SessionSweepInterval    time.Duration
	CookieSecure            bool
}

// OIDCEnabled reports whether single sign-on is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCIssuer != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:   getEnv("ADDR", ":8080"),
		WebDir: getEnv("WEB_DIR", "web"),

		DocumentStore: strings.ToLower(getEnv("DOCUMENT_STORE", BackendMemory)),
		SessionStore:  strings.ToLower(getEnv("SESSION_STORE", BackendMemory)),
		BlobStore:     strings.ToLower(getEnv("BLOB_STORE", BackendMemory)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "portfolio.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "portfolio"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinIOPublicURL: strings.TrimRight(os.Getenv("MINIO_PUBLIC_URL"), "/"),

		SurrealURL:  getEnv("SURREALDB_URL", "ws://localhost:8000"),
		SurrealNS:   getEnv("SURREALDB_NS", "portfolio"),
		SurrealDB:   getEnv("SURREALDB_DB", "portfolio"),
		SurrealUser: getEnv("SURREALDB_USER", "root"),
		SurrealPass: os.Getenv("SURREALDB_PASS"),

		AdminEmail:    strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminEmails:   splitCSV(os.Getenv("ADMIN_EMAILS")),

		OIDCIssuer:       os.Getenv("OIDC_ISSUER"),
		OIDCClientID:     os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),

		CookieSecure: getEnvBool("COOKIE_SECURE", false),
	}

	var err error
	if cfg.SessionDuration, err = getEnvDuration("SESSION_DURATION", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionRefreshThreshold, err = getEnvDuration("SESSION_REFRESH_THRESHOLD", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionSweepInterval, err = getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	switch c.DocumentStore {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for DOCUMENT_STORE=postgres")
		}
	case BackendSurrealDB:
		if c.SurrealURL == "" {
			errs = append(errs, "SURREALDB_URL is required for DOCUMENT_STORE=surrealdb")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown DOCUMENT_STORE %q", c.DocumentStore))
	}

	switch c.SessionStore {
	case BackendMemory, BackendRedis, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for SESSION_STORE=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown SESSION_STORE %q", c.SessionStore))
	}

	switch c.BlobStore {
	case BackendMemory:
	case BackendMinIO:
		if c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			errs = append(errs, "MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for BLOB_STORE=minio")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown BLOB_STORE %q", c.BlobStore))
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if c.AdminPassword != "" && len(c.AdminPassword) < 8 {
		errs = append(errs, "ADMIN_PASSWORD must be at least 8 chars")
	}
	if c.OIDCEnabled() && (c.OIDCClientID == "" || c.OIDCRedirectURL == "") {
		errs = append(errs, "OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required when OIDC_ISSUER is set")
	}
	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be > 0")
	}
	if c.SessionRefreshThreshold <= 0 || c.SessionRefreshThreshold >= c.SessionDuration {
		errs = append(errs, "SESSION_REFRESH_THRESHOLD must be > 0 and shorter than SESSION_DURATION")
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, "SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.RedisDB < 0 {
		errs = append(errs, "REDIS_DB must be >= 0")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, def.String()))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
