package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"collabhub-realtime/internal/infrastructure/metrics"
)

// DefaultTypingTTL is how long a typing signal stays valid without a refresh.
const DefaultTypingTTL = 3 * time.Second

type typingKey struct {
	from   string
	toward string
}

// Presence answers online questions through the Registry and keeps short-lived
// typing signals in memory.
type Presence struct {
	registry *Registry
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	typing map[typingKey]time.Time // -> expiresAt
}

// PresenceOption customizes a Presence.
type PresenceOption func(*Presence)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PresenceOption {
	return func(p *Presence) { p.now = now }
}

// WithTypingTTL overrides DefaultTypingTTL.
func WithTypingTTL(ttl time.Duration) PresenceOption {
	return func(p *Presence) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func NewPresence(registry *Registry, opts ...PresenceOption) *Presence {
	p := &Presence{
		registry: registry,
		ttl:      DefaultTypingTTL,
		now:      time.Now,
		typing:   make(map[typingKey]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsOnline delegates to the registry.
func (p *Presence) IsOnline(userID string) bool {
	return p.registry != nil && p.registry.IsOnline(userID)
}

// SetTyping records or refreshes the signal from -> toward. It reports whether the
// signal was not active before the call.
func (p *Presence) SetTyping(from, toward string) bool {
	now := p.now()
	k := typingKey{from: from, toward: toward}

	p.mu.Lock()
	defer p.mu.Unlock()
	exp, ok := p.typing[k]
	p.typing[k] = now.Add(p.ttl)
	metrics.SetTypingSignals(len(p.typing))
	return !ok || !now.Before(exp)
}

// isTyping reports whether an unexpired signal from -> toward exists.
func (p *Presence) isTyping(from, toward string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	exp, ok := p.typing[typingKey{from: from, toward: toward}]
	return ok && p.now().Before(exp)
}

// ExpireStale removes expired signals and returns how many were dropped.
func (p *Presence) ExpireStale() int {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for k, exp := range p.typing {
		if !now.Before(exp) {
			delete(p.typing, k)
			n++
		}
	}
	metrics.SetTypingSignals(len(p.typing))
	return n
}

// Run sweeps expired signals every interval until ctx is done.
func (p *Presence) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info("typing sweeper started", "interval", interval, "ttl", p.ttl)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := p.ExpireStale(); n > 0 {
				log.Debug("expired typing signals", "count", n)
			}
		}
	}
}
