package controller

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	iport "collabhub-realtime/internal/infrastructure/identity/port"
	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	"collabhub-realtime/internal/pkg/chat/application/usecase"
)

const identityKey = "identity"

// RequireIdentity authenticates the request and stores the caller in the gin context.
func RequireIdentity(authn iport.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authn.Authenticate(c.Request.Context(), handshake(c))
		if err != nil {
			abortUnauthenticated(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole admits only callers whose role is one of roles. It must run after
// RequireIdentity.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerOf(c)
		if !slices.Contains(roles, caller.Role) {
			log.Warn("caller role not allowed", "path", c.FullPath(), "user", caller.UserID, "role", caller.Role)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func handshake(c *gin.Context) iport.Handshake {
	return iport.HandshakeFrom(c.GetHeader("Authorization"), c.Query("token"))
}

func abortUnauthenticated(c *gin.Context, err error) {
	if !errors.Is(err, iport.ErrUnauthenticated) {
		log.Error("identity lookup failed", "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity service unavailable"})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
}

func callerOf(c *gin.Context) iport.Identity {
	id, _ := c.Get(identityKey)
	caller, _ := id.(iport.Identity)
	return caller
}

// writeError maps use case errors onto HTTP statuses. Store details never leave the server.
func writeError(c *gin.Context, err error) {
	var ve *chat.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this conversation"})
	case errors.Is(err, chat.ErrConversationAbsent):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, usecase.ErrPersistence):
		log.Error("store failure", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected persistence error"})
	default:
		log.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// queryInt reads a non-negative integer query parameter, falling back to def.
func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
