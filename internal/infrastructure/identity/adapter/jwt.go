package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"collabhub-realtime/internal/infrastructure/identity/port"
)

// JWTAuthenticator verifies HS256 tokens whose "sub" claim is the user id and whose
// optional "role" claim is the user's role.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt: secret is empty")
	}
	return &JWTAuthenticator{secret: []byte(secret)}, nil
}

var _ port.Authenticator = (*JWTAuthenticator)(nil)

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, h port.Handshake) (port.Identity, error) {
	if h.Token == "" {
		return port.Identity{}, port.ErrUnauthenticated
	}
	var c claims
	token, err := jwt.ParseWithClaims(h.Token, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return port.Identity{}, fmt.Errorf("%w: %v", port.ErrUnauthenticated, err)
	}
	sub := strings.TrimSpace(c.Subject)
	if sub == "" {
		return port.Identity{}, fmt.Errorf("%w: token has no subject", port.ErrUnauthenticated)
	}
	return port.Identity{UserID: sub, Role: c.Role}, nil
}

// Sign issues a token for userID. The realtime engine never issues credentials;
// this exists for tooling and tests.
func (a *JWTAuthenticator) Sign(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}
