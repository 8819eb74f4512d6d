package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cadapter "collabhub-realtime/internal/infrastructure/cache/adapter"
	cport "collabhub-realtime/internal/infrastructure/cache/port"
	"collabhub-realtime/internal/infrastructure/identity/port"
	"collabhub-realtime/internal/testutil/testredis"
)

func TestJWTAuthenticator(t *testing.T) {
	auth, err := NewJWTAuthenticator("s3cret")
	require.NoError(t, err)

	tok, err := auth.Sign("alice", "founder", time.Minute)
	require.NoError(t, err)

	id, err := auth.Authenticate(context.Background(), port.Handshake{Token: tok})
	require.NoError(t, err)
	assert.Equal(t, port.Identity{UserID: "alice", Role: "founder"}, id)
}

func TestJWTAuthenticatorRejects(t *testing.T) {
	auth, err := NewJWTAuthenticator("s3cret")
	require.NoError(t, err)
	other, err := NewJWTAuthenticator("other")
	require.NoError(t, err)

	expired, err := auth.Sign("alice", "", -time.Minute)
	require.NoError(t, err)
	foreign, err := other.Sign("alice", "", time.Minute)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"expired":    expired,
		"wrong key":  foreign,
		"no subject": noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Authenticate(context.Background(), port.Handshake{Token: tok})
			assert.ErrorIs(t, err, port.ErrUnauthenticated)
		})
	}

	_, err = NewJWTAuthenticator("")
	assert.Error(t, err)
}

func TestHandshakeFrom(t *testing.T) {
	assert.Equal(t, "abc", port.HandshakeFrom("Bearer abc", "zzz").Token)
	assert.Equal(t, "zzz", port.HandshakeFrom("", "zzz").Token)
	assert.Equal(t, "", port.HandshakeFrom("Basic abc", "").Token)
}

type mapCache struct {
	values  map[string]string
	expires map[string]time.Duration
}

func newMapCache(values map[string]string) *mapCache {
	return &mapCache{values: values, expires: map[string]time.Duration{}}
}

func (m *mapCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", cport.ErrMiss
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.values[key] = value
	m.expires[key] = ttl
	return nil
}

func (m *mapCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	if _, ok := m.values[key]; !ok {
		return cport.ErrMiss
	}
	m.expires[key] = ttl
	return nil
}

func (*mapCache) Ping(context.Context) error { return nil }
func (*mapCache) Close() error               { return nil }

func TestSessionAuthenticator(t *testing.T) {
	cache := newMapCache(map[string]string{
		SessionKey("good"):   `{"userId":"bob","role":"talent"}`,
		SessionKey("broken"): `{"role":"talent"}`,
	})
	auth := NewSessionAuthenticator(cache)

	id, err := auth.Authenticate(context.Background(), port.Handshake{Token: "good"})
	require.NoError(t, err)
	assert.Equal(t, "bob", id.UserID)
	assert.Equal(t, "talent", id.Role)

	_, err = auth.Authenticate(context.Background(), port.Handshake{Token: "missing"})
	assert.ErrorIs(t, err, port.ErrUnauthenticated)
	_, err = auth.Authenticate(context.Background(), port.Handshake{Token: "broken"})
	assert.ErrorIs(t, err, port.ErrUnauthenticated)
	assert.Empty(t, cache.expires)
}

func TestSessionAuthenticatorSlidingTTL(t *testing.T) {
	cache := newMapCache(map[string]string{SessionKey("good"): `{"userId":"bob"}`})
	auth := NewSessionAuthenticator(cache, WithSlidingTTL(2*time.Hour))

	_, err := auth.Authenticate(context.Background(), port.Handshake{Token: "good"})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cache.expires[SessionKey("good")])
}

func TestSessionAuthenticatorRedis(t *testing.T) {
	url := testredis.StartRedis(t)
	ctx := context.Background()

	cache, err := cadapter.NewRedisCache(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	require.NoError(t, cache.Set(ctx, SessionKey("tok"), `{"userId":"carol","role":"investor"}`, time.Minute))

	id, err := NewSessionAuthenticator(cache).Authenticate(ctx, port.Handshake{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, port.Identity{UserID: "carol", Role: "investor"}, id)

	_, err = NewSessionAuthenticator(cache).Authenticate(ctx, port.Handshake{Token: "nope"})
	assert.ErrorIs(t, err, port.ErrUnauthenticated)

	require.NoError(t, cache.Set(ctx, SessionKey("short"), `{"userId":"dave"}`, time.Second))
	_, err = NewSessionAuthenticator(cache, WithSlidingTTL(time.Hour)).Authenticate(ctx, port.Handshake{Token: "short"})
	require.NoError(t, err)
	time.Sleep(1500 * time.Millisecond)
	_, err = cache.Get(ctx, SessionKey("short"))
	assert.NoError(t, err, "session was extended")

	assert.ErrorIs(t, cache.Expire(ctx, SessionKey("absent"), time.Minute), cport.ErrMiss)
}
