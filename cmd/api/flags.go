package main

import (
	"github.com/urfave/cli/v3"

	"collabhub-realtime/internal/config"
)

func storeFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Category:    "Store:",
			Sources:     cli.EnvVars("CHAT_STORE"),
			Destination: &cfg.StoreType,
			Value:       cfg.StoreType,
			Usage:       "Conversation store backend (postgres|sqlite)",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Store:",
			Sources:     cli.EnvVars("DB_URL"),
			Destination: &cfg.DBURL,
			Usage:       "Postgres connection URL",
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Category:    "Store:",
			Sources:     cli.EnvVars("SQLITE_PATH"),
			Destination: &cfg.SQLitePath,
			Value:       cfg.SQLitePath,
			Usage:       "SQLite database file (\":memory:\" for a throwaway store)",
		},
	}
}

func logFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "Logging:",
			Sources:     cli.EnvVars("LOG_LEVEL"),
			Destination: &cfg.LogLevel,
			Value:       cfg.LogLevel,
			Usage:       "Log level (debug|info|warn|error)",
		},
		&cli.StringFlag{
			Name:        "log-format",
			Category:    "Logging:",
			Sources:     cli.EnvVars("LOG_FORMAT"),
			Destination: &cfg.LogFormat,
			Value:       cfg.LogFormat,
			Usage:       "Log format (text|json)",
		},
	}
}

func serveFlags(cfg *config.Config) []cli.Flag {
	flags := []cli.Flag{
		// ── Server ────────────────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_PORT", "PORT"),
			Destination: &cfg.Port,
			Value:       cfg.Port,
			Usage:       "HTTP server port",
		},
		&cli.BoolFlag{
			Name:        "migrate-at-start",
			Category:    "Store:",
			Sources:     cli.EnvVars("CHAT_MIGRATE_AT_START"),
			Destination: &cfg.MigrateAtStart,
			Value:       cfg.MigrateAtStart,
			Usage:       "Apply the store schema on startup",
		},

		// ── Identity ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "auth",
			Category:    "Identity:",
			Sources:     cli.EnvVars("CHAT_AUTH"),
			Destination: &cfg.AuthType,
			Value:       cfg.AuthType,
			Usage:       "Credential verifier (jwt|session)",
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Category:    "Identity:",
			Sources:     cli.EnvVars("JWT_SECRET"),
			Destination: &cfg.JWTSecret,
			Usage:       "HS256 secret shared with the auth subsystem",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Identity:",
			Sources:     cli.EnvVars("REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis URL for sessions and the notify queue",
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Category:    "Identity:",
			Sources:     cli.EnvVars("CHAT_SESSION_TTL"),
			Destination: &cfg.SessionTTL,
			Usage:       "Extend session tokens to this TTL on every handshake (session auth only)",
		},

		// ── Engine ────────────────────────────────────────────────
		&cli.DurationFlag{
			Name:        "operation-timeout",
			Category:    "Engine:",
			Sources:     cli.EnvVars("CHAT_OPERATION_TIMEOUT"),
			Destination: &cfg.OperationTimeout,
			Value:       cfg.OperationTimeout,
			Usage:       "Deadline for a single inbound operation",
		},
		&cli.DurationFlag{
			Name:        "typing-ttl",
			Category:    "Engine:",
			Sources:     cli.EnvVars("CHAT_TYPING_TTL"),
			Destination: &cfg.TypingTTL,
			Value:       cfg.TypingTTL,
			Usage:       "How long a typing signal stays valid",
		},
		&cli.DurationFlag{
			Name:        "typing-sweep-interval",
			Category:    "Engine:",
			Sources:     cli.EnvVars("CHAT_TYPING_SWEEP_INTERVAL"),
			Destination: &cfg.TypingSweepInterval,
			Value:       cfg.TypingSweepInterval,
			Usage:       "How often expired typing signals are dropped",
		},
		&cli.IntFlag{
			Name:        "max-message-length",
			Category:    "Engine:",
			Sources:     cli.EnvVars("CHAT_MAX_MESSAGE_LENGTH"),
			Destination: &cfg.MaxMessageLength,
			Value:       cfg.MaxMessageLength,
			Usage:       "Maximum message length in characters",
		},
		&cli.IntFlag{
			Name:        "recent-notifications",
			Category:    "Engine:",
			Sources:     cli.EnvVars("CHAT_RECENT_NOTIFICATIONS"),
			Destination: &cfg.RecentNotifications,
			Value:       cfg.RecentNotifications,
			Usage:       "Notifications pushed on connect (max 50)",
		},
		&cli.BoolFlag{
			Name:        "notify-on-message",
			Category:    "Engine:",
			Sources:     cli.EnvVars("CHAT_NOTIFY_ON_MESSAGE"),
			Destination: &cfg.NotifyOnMessage,
			Value:       cfg.NotifyOnMessage,
			Usage:       "Raise a notification for every new message",
		},
		&cli.BoolFlag{
			Name:        "mark-read-self-fanout",
			Category:    "Engine:",
			Sources:     cli.EnvVars("CHAT_MARK_READ_SELF_FANOUT"),
			Destination: &cfg.MarkReadSelfFanout,
			Value:       cfg.MarkReadSelfFanout,
			Usage:       "Push read updates to all of the reader's connections",
		},

		// ── Queue ─────────────────────────────────────────────────
		&cli.IntFlag{
			Name:        "asynq-concurrency",
			Category:    "Queue:",
			Sources:     cli.EnvVars("ASYNQ_CONCURRENCY"),
			Destination: &cfg.AsynqConcurrency,
			Value:       cfg.AsynqConcurrency,
			Usage:       "Notify worker concurrency",
		},
		&cli.StringFlag{
			Name:        "asynq-queues",
			Category:    "Queue:",
			Sources:     cli.EnvVars("ASYNQ_QUEUES"),
			Destination: &cfg.AsynqQueues,
			Usage:       "Queue weights, e.g. notifications=3,default=1",
		},
	}
	flags = append(flags, storeFlags(cfg)...)
	return append(flags, logFlags(cfg)...)
}
