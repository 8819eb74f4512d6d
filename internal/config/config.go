package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	AuthJWT     = "jwt"
	AuthSession = "session"
)

// Config holds all configuration for the realtime service.
type Config struct {
	Port int

	// Store
	StoreType      string // "postgres" or "sqlite"
	DBURL          string
	SQLitePath     string
	MigrateAtStart bool
	RedisURL       string

	// Identity
	AuthType   string // "jwt" or "session"
	JWTSecret  string
	SessionTTL time.Duration // sliding expiry applied on each session handshake; 0 disables

	// Engine
	OperationTimeout    time.Duration
	TypingTTL           time.Duration
	TypingSweepInterval time.Duration
	MaxMessageLength    int
	RecentNotifications int
	NotifyOnMessage     bool
	MarkReadSelfFanout  bool

	// Queue
	AsynqConcurrency int
	AsynqQueues      string

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Port:                8080,
		StoreType:           StorePostgres,
		SQLitePath:          "collabhub.db",
		MigrateAtStart:      true,
		AuthType:            AuthJWT,
		OperationTimeout:    5 * time.Second,
		TypingTTL:           3 * time.Second,
		TypingSweepInterval: time.Second,
		MaxMessageLength:    5000,
		RecentNotifications: 50,
		NotifyOnMessage:     true,
		AsynqConcurrency:    10,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Validate checks option combinations that flags alone cannot express.
func (c *Config) Validate() error {
	switch c.StoreType {
	case StorePostgres:
		if c.DBURL == "" {
			return fmt.Errorf("db-url is required when store is %q", StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite-path is required when store is %q", StoreSQLite)
		}
	default:
		return fmt.Errorf("unknown store %q", c.StoreType)
	}

	switch c.AuthType {
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("jwt-secret is required when auth is %q", AuthJWT)
		}
	case AuthSession:
		if c.RedisURL == "" {
			return fmt.Errorf("redis-url is required when auth is %q", AuthSession)
		}
	default:
		return fmt.Errorf("unknown auth %q", c.AuthType)
	}

	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation-timeout must be positive")
	}
	if c.TypingTTL <= 0 {
		return fmt.Errorf("typing-ttl must be positive")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("max-message-length must be positive")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session-ttl must not be negative")
	}
	return nil
}

// QueueEnabled reports whether the notify queue (asynq) can run.
func (c *Config) QueueEnabled() bool {
	return c.RedisURL != ""
}

// ConfigureLogging applies LogLevel and LogFormat to the default logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(log.JSONFormatter)
	}
	log.SetDefault(logger)
	return nil
}
