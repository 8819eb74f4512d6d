package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpHandler "collabhub-realtime/internal/pkg/chat/presentation/http"
)

// Prefix is where version 1 of the realtime API is mounted.
const Prefix = "/api/v1"

// RegisterRoutes mounts the chat and notification endpoints under Prefix. Unknown
// paths get a JSON 404 so clients never have to parse gin's text body.
func RegisterRoutes(r *gin.Engine, deps httpHandler.Deps) {
	httpHandler.RegisterRoutes(r.Group(Prefix), deps)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "path": c.Request.URL.Path})
	})
}
