package port

import (
	"context"
	"errors"
	"time"
)

// ErrMiss reports an absent key, as opposed to a transport failure.
var ErrMiss = errors.New("cache: miss")

// Cache is the shared key-value store the auth subsystem writes sessions into.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value at key. ttl <= 0 keeps it until evicted.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Expire resets the time to live of an existing key. It returns ErrMiss when the
	// key is gone.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
