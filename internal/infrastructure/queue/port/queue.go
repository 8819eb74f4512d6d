package port

import (
	"context"
	"time"
)

// Task is a background job: a stable type name plus an encoded payload owned by
// whoever registers the handler.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the backend to retry, so handlers
// must tolerate running more than once.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption maps onto backend options. Zero values are left to the backend.
type EnqueueOption struct {
	Queue     string
	MaxRetry  int
	ProcessIn time.Duration
	Timeout   time.Duration // per-attempt processing budget
}

// Client is the producer side used by the internal notify ingress.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs workers. Run blocks until ctx is done and then drains in-flight tasks.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
