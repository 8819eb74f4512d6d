package port

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when a handshake carries no valid identity.
var ErrUnauthenticated = errors.New("identity: unauthenticated")

// RoleService marks a credential issued to another platform subsystem rather than
// to an end user.
const RoleService = "service"

// Identity is the verified caller of a connection or request.
type Identity struct {
	UserID string
	Role   string
}

// Handshake carries the credential presented by a client.
type Handshake struct {
	Token string
}

// Authenticator verifies an already issued credential. Issuing credentials is the
// auth subsystem's job.
type Authenticator interface {
	Authenticate(ctx context.Context, h Handshake) (Identity, error)
}

// HandshakeFrom extracts the token from an Authorization header value, falling back
// to a query parameter value (browsers cannot set headers on websocket upgrades).
func HandshakeFrom(authorization, queryToken string) Handshake {
	if tok, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		return Handshake{Token: strings.TrimSpace(tok)}
	}
	return Handshake{Token: strings.TrimSpace(queryToken)}
}
