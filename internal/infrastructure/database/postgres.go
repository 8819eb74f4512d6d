package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

// minConns is the floor for MaxConns. Every in-flight append holds one connection
// while it waits on its conversation row lock.
const minConns = 10

// PoolOption adjusts the parsed pool config before the pool is built.
type PoolOption func(*pgxpool.Config)

// WithMaxConns raises or lowers MaxConns. Values below the floor are lifted.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) { c.MaxConns = n }
}

// WithApplicationName tags server-side sessions, visible in pg_stat_activity.
func WithApplicationName(name string) PoolOption {
	return func(c *pgxpool.Config) {
		if name != "" {
			c.ConnConfig.RuntimeParams["application_name"] = name
		}
	}
}

// Connect builds a pgx pool for dsn and pings it. Scheme aliases used by the
// platform's env files (postgresql+psycopg2://, postgis://, pgsql:// ...) are
// accepted.
func Connect(ctx context.Context, dsn string, opts ...PoolOption) (*pgxpool.Pool, error) {
	normalized := normalizeDSN(dsn)
	if normalized == "" {
		return nil, errors.New("postgres: dsn is empty")
	}

	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.MaxConns < minConns {
		cfg.MaxConns = minConns
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	log.Info("postgres connected", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database, "maxConns", cfg.MaxConns)
	return pool, nil
}

var schemeAliases = map[string]string{
	"postgresql+asyncpg":  "postgresql",
	"postgresql+psycopg":  "postgresql",
	"postgresql+psycopg2": "postgresql",
	"postgresql+pgx":      "postgresql",
	"postgres+asyncpg":    "postgres",
	"postgres+pgx":        "postgres",
	"postgis":             "postgres",
	"pgsql":               "postgres",
}

// normalizeDSN rewrites driver-suffixed or aliased schemes into ones pgx parses.
// Keyword/value DSNs pass through untouched.
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	if canonical, known := schemeAliases[strings.ToLower(scheme)]; known {
		return canonical + "://" + rest
	}
	return s
}
