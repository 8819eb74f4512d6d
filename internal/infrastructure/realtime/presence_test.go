package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestPresenceOnlineFollowsRegistry(t *testing.T) {
	r := NewRegistry()
	p := NewPresence(r)
	h := newFakeHandle("alice")

	assert.False(t, p.IsOnline("alice"))
	r.Register(h)
	assert.True(t, p.IsOnline("alice"))
	r.Unregister(h)
	assert.False(t, p.IsOnline("alice"))

	assert.False(t, NewPresence(nil).IsOnline("alice"))
}

func TestPresenceTypingExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewPresence(NewRegistry(), WithClock(clock.Now))

	assert.True(t, p.SetTyping("alice", "bob"))
	assert.True(t, p.isTyping("alice", "bob"))
	assert.False(t, p.isTyping("bob", "alice"))

	clock.Advance(2 * time.Second)
	assert.False(t, p.SetTyping("alice", "bob"), "refresh of an active signal")

	clock.Advance(2 * time.Second)
	assert.True(t, p.isTyping("alice", "bob"), "refresh extends the window")

	clock.Advance(DefaultTypingTTL)
	assert.False(t, p.isTyping("alice", "bob"))
	assert.True(t, p.SetTyping("alice", "bob"), "expired signal counts as fresh")
}

func TestPresenceExpireStale(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	p := NewPresence(nil, WithClock(clock.Now), WithTypingTTL(time.Second))

	p.SetTyping("alice", "bob")
	clock.Advance(500 * time.Millisecond)
	p.SetTyping("carol", "bob")

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, 1, p.ExpireStale())
	assert.True(t, p.isTyping("carol", "bob"))

	clock.Advance(time.Second)
	assert.Equal(t, 1, p.ExpireStale())
	assert.Equal(t, 0, p.ExpireStale())
}

func TestPresenceRunSweeps(t *testing.T) {
	p := NewPresence(nil, WithTypingTTL(10*time.Millisecond))
	p.SetTyping("alice", "bob")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.typing) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
