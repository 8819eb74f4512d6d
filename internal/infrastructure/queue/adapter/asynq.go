package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hibiken/asynq"

	"collabhub-realtime/internal/infrastructure/queue/port"
)

// AsynqClient enqueues tasks into redis through asynq.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient constructs a client backed by the redis at redisURL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := redisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

func redisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is empty")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return opt, nil
}

var _ port.Client = (*AsynqClient)(nil)

func (a *AsynqClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	var asynqOpts []asynq.Option
	for _, op := range opts {
		if op.Queue != "" {
			asynqOpts = append(asynqOpts, asynq.Queue(op.Queue))
		}
		if op.MaxRetry > 0 {
			asynqOpts = append(asynqOpts, asynq.MaxRetry(op.MaxRetry))
		}
		if op.ProcessIn > 0 {
			asynqOpts = append(asynqOpts, asynq.ProcessIn(op.ProcessIn))
		}
		if op.Timeout > 0 {
			asynqOpts = append(asynqOpts, asynq.Timeout(op.Timeout))
		}
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOpts...)
	if err != nil {
		return "", fmt.Errorf("asynq: enqueue %s: %w", t.Type, err)
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// AsynqServer runs registered handlers as asynq workers.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// ServerConfig tunes the worker side.
type ServerConfig struct {
	RedisURL    string
	Concurrency int    // default 10
	Queues      string // CSV like "critical=6,default=3,low=1"; default "default=1,notifications=3"
}

// NewAsynqServer constructs a worker server. It does not connect until Run.
func NewAsynqServer(cfg ServerConfig) (*AsynqServer, error) {
	opt, err := redisOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	queues := map[string]int{"default": 1, NotificationsQueue: 3}
	if parsed := parseQueueWeights(cfg.Queues); len(parsed) > 0 {
		queues = parsed
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		Logger:      asynqLogger{log.Default().WithPrefix("asynq")},
		ErrorHandler: asynq.ErrorHandlerFunc(logTaskFailure),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

func logTaskFailure(_ context.Context, task *asynq.Task, err error) {
	if isPermanent(err) {
		log.Error("task dropped", "type", task.Type(), "permanent", true, "err", err)
		return
	}
	log.Warn("task failed", "type", task.Type(), "permanent", false, "err", err)
}

// isPermanent reports whether a handler error opted out of retries.
func isPermanent(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}

// NotificationsQueue is the queue other subsystems enqueue notify requests on.
const NotificationsQueue = "notifications"

var _ port.Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h port.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		pt := port.Task{Type: t.Type(), Payload: t.Payload()}
		return h(ctx, pt)
	})
}

// Run starts the workers and blocks until ctx is done, then shuts down gracefully.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("asynq: start: %w", err)
	}
	log.Info("notification worker started")
	<-ctx.Done()
	s.server.Shutdown()
	log.Info("notification worker stopped")
	return nil
}

// parseQueueWeights parses strings like "critical=6,default=3,low=1" into a map.
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}

// asynqLogger adapts the structured logger to asynq's printf-free Logger interface.
type asynqLogger struct{ l *log.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal(fmt.Sprint(args...)) }
