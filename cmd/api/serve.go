package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	v1 "collabhub-realtime/cmd/api/router/v1"
	"collabhub-realtime/internal/config"
	cacheadapter "collabhub-realtime/internal/infrastructure/cache/adapter"
	idadapter "collabhub-realtime/internal/infrastructure/identity/adapter"
	iport "collabhub-realtime/internal/infrastructure/identity/port"
	"collabhub-realtime/internal/infrastructure/metrics"
	queueadapter "collabhub-realtime/internal/infrastructure/queue/adapter"
	qport "collabhub-realtime/internal/infrastructure/queue/port"
	"collabhub-realtime/internal/infrastructure/realtime"
	"collabhub-realtime/internal/pkg/chat/application/engine"
	"collabhub-realtime/internal/pkg/chat/application/task"
	"collabhub-realtime/internal/pkg/chat/persistence/repository/adapter"
	repometrics "collabhub-realtime/internal/pkg/chat/persistence/repository/metrics"
	httpHandler "collabhub-realtime/internal/pkg/chat/presentation/http"
)

func serveCommand() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the realtime HTTP/websocket server and notify worker",
		Flags: serveFlags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cfg.ConfigureLogging(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(config.WithContext(ctx, &cfg), &cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	metrics.Init(prometheus.Labels{"service": "collabhub-realtime"})

	store, err := adapter.Open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if cfg.MigrateAtStart {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}
	repo := repometrics.Wrap(store)

	authn, closeAuthn, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAuthn()

	registry := realtime.NewRegistry()
	presence := realtime.NewPresence(registry, realtime.WithTypingTTL(cfg.TypingTTL))
	router := engine.NewRouter(repo, registry, presence, engine.Options{
		OperationTimeout:        cfg.OperationTimeout,
		MaxMessageLength:        cfg.MaxMessageLength,
		RecentNotificationLimit: cfg.RecentNotifications,
		NotifyOnMessage:         cfg.NotifyOnMessage,
		MarkReadSelfFanout:      cfg.MarkReadSelfFanout,
	})

	g, gctx := errgroup.WithContext(ctx)

	var queue qport.Client
	if cfg.QueueEnabled() {
		client, err := queueadapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		queue = client

		worker, err := queueadapter.NewAsynqServer(queueadapter.ServerConfig{
			RedisURL:    cfg.RedisURL,
			Concurrency: cfg.AsynqConcurrency,
			Queues:      cfg.AsynqQueues,
		})
		if err != nil {
			return err
		}
		task.RegisterNotifyTask(worker, router)
		g.Go(func() error { return worker.Run(gctx) })
	} else {
		log.Warn("REDIS_URL not set; notify queue disabled")
	}

	g.Go(func() error { return presence.Run(gctx, cfg.TypingSweepInterval) })

	engineHTTP := newEngine(repo, registry)
	v1.RegisterRoutes(engineHTTP, httpHandler.Deps{
		Repo:     repo,
		Authn:    authn,
		Registry: registry,
		Router:   router,
		Queue:    queue,
		Timeout:  cfg.OperationTimeout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engineHTTP,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", srv.Addr, "store", cfg.StoreType, "auth", cfg.AuthType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		registry.CloseAll(websocket.CloseGoingAway, "server shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newAuthenticator(ctx context.Context, cfg *config.Config) (iport.Authenticator, func(), error) {
	switch cfg.AuthType {
	case config.AuthSession:
		cache, err := cacheadapter.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return idadapter.NewSessionAuthenticator(cache, idadapter.WithSlidingTTL(cfg.SessionTTL)), func() { _ = cache.Close() }, nil
	default:
		authn, err := idadapter.NewJWTAuthenticator(cfg.JWTSecret)
		if err != nil {
			return nil, nil, err
		}
		return authn, func() {}, nil
	}
}

// pinger is the part of the store the health check needs.
type pinger interface {
	Ping(ctx context.Context) error
}

func newEngine(store pinger, registry *realtime.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": "store unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "connections": registry.Count()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// requestLogger logs each request through the structured logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
