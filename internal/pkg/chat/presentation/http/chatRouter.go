package http

import (
	"time"

	"github.com/gin-gonic/gin"

	iport "collabhub-realtime/internal/infrastructure/identity/port"
	qport "collabhub-realtime/internal/infrastructure/queue/port"
	"collabhub-realtime/internal/infrastructure/realtime"
	"collabhub-realtime/internal/pkg/chat/application/engine"
	"collabhub-realtime/internal/pkg/chat/presentation/controller"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// Deps carries what the chat endpoints are built from.
type Deps struct {
	Repo     repository.ChatRepository
	Authn    iport.Authenticator
	Registry *realtime.Registry
	Router   *engine.Router
	Queue    qport.Client // optional; internal notify ingress is disabled without it
	Timeout  time.Duration
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	socketCtl := controller.NewChatSocketController(d.Authn, d.Registry, d.Router)
	convCtl := controller.NewConversationController(d.Repo, d.Router, d.Timeout)
	startCtl := controller.NewStartConversationController(d.Repo, d.Router, d.Timeout)
	getMsgCtl := controller.NewGetMessageController(d.Repo, d.Timeout)
	sendMsgCtl := controller.NewSendMessageController(d.Router)
	notifCtl := controller.NewNotificationController(d.Repo, d.Router, d.Timeout)

	// GET /api/v1/ws -> websocket endpoint; authenticates the handshake itself
	g.GET("/ws", socketCtl.Handle())

	authed := g.Group("", controller.RequireIdentity(d.Authn))

	authed.GET("/conversations", convCtl.ListHandle())
	authed.POST("/conversations/start", startCtl.Handle())
	authed.GET("/conversations/:conversationId", convCtl.DetailHandle())
	authed.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())
	authed.POST("/conversations/:conversationId/messages", sendMsgCtl.Handle())
	authed.POST("/conversations/:conversationId/read", convCtl.MarkReadHandle())
	authed.GET("/messages/unread", convCtl.UnreadHandle())

	authed.GET("/notifications", notifCtl.ListHandle())
	authed.GET("/notifications/unread", notifCtl.UnreadHandle())
	authed.POST("/notifications/read", notifCtl.MarkReadHandle())

	if d.Queue != nil {
		enqueueCtl := controller.NewEnqueueNotificationController(d.Queue)
		// POST /api/v1/internal/notifications -> enqueue a notify task; service credentials only
		authed.POST("/internal/notifications", controller.RequireRole(iport.RoleService), enqueueCtl.Handle())
	}
}
