package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	"collabhub-realtime/internal/pkg/chat/application/engine"
	"collabhub-realtime/internal/pkg/chat/application/event"
)

// SendMessageController posts a message into a conversation over REST. The message
// takes the same path as a websocket send, so live connections of both participants
// see it.
type SendMessageController struct {
	Router *engine.Router
}

func NewSendMessageController(router *engine.Router) *SendMessageController {
	return &SendMessageController{Router: router}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Content        string `json:"content"`
	AttachmentURL  string `json:"attachmentUrl"`
	AttachmentType string `json:"attachmentType"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerOf(c)

		a, b, ok := chat.ParticipantsOf(c.Param("conversationId"))
		if !ok {
			writeError(c, chat.Invalid("conversationId", "is malformed"))
			return
		}
		if caller.UserID != a && caller.UserID != b {
			writeError(c, chat.ErrNotParticipant)
			return
		}
		receiver := a
		if caller.UserID == a {
			receiver = b
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		msg, err := h.Router.SendMessage(c.Request.Context(), nil, caller.UserID, event.SendMessage{
			ReceiverID:     receiver,
			Content:        req.Content,
			AttachmentURL:  req.AttachmentURL,
			AttachmentType: req.AttachmentType,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, event.MessagePayload{Message: *msg, IsMine: true})
	}
}
