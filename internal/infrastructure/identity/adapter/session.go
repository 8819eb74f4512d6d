package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	cport "collabhub-realtime/internal/infrastructure/cache/port"
	"collabhub-realtime/internal/infrastructure/identity/port"
)

const sessionKeyPrefix = "session:"

// SessionAuthenticator resolves opaque session tokens written to the shared cache by
// the auth subsystem as session:<token> -> {"userId": ..., "role": ...}.
type SessionAuthenticator struct {
	cache   cport.Cache
	sliding time.Duration
}

// SessionOption customizes a SessionAuthenticator.
type SessionOption func(*SessionAuthenticator)

// WithSlidingTTL extends a session to ttl every time it authenticates a handshake.
func WithSlidingTTL(ttl time.Duration) SessionOption {
	return func(a *SessionAuthenticator) { a.sliding = ttl }
}

func NewSessionAuthenticator(cache cport.Cache, opts ...SessionOption) *SessionAuthenticator {
	a := &SessionAuthenticator{cache: cache}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ port.Authenticator = (*SessionAuthenticator)(nil)

type sessionRecord struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// SessionKey returns the cache key of a session token.
func SessionKey(token string) string { return sessionKeyPrefix + token }

func (a *SessionAuthenticator) Authenticate(ctx context.Context, h port.Handshake) (port.Identity, error) {
	if h.Token == "" {
		return port.Identity{}, port.ErrUnauthenticated
	}
	raw, err := a.cache.Get(ctx, SessionKey(h.Token))
	if errors.Is(err, cport.ErrMiss) {
		return port.Identity{}, port.ErrUnauthenticated
	}
	if err != nil {
		return port.Identity{}, fmt.Errorf("session lookup: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.UserID == "" {
		return port.Identity{}, fmt.Errorf("%w: malformed session", port.ErrUnauthenticated)
	}
	if a.sliding > 0 {
		if err := a.cache.Expire(ctx, SessionKey(h.Token), a.sliding); err != nil {
			log.Debug("session refresh failed", "user", rec.UserID, "err", err)
		}
	}
	return port.Identity{UserID: rec.UserID, Role: rec.Role}, nil
}
