package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"collabhub-realtime/internal/pkg/chat/application/engine"
	"collabhub-realtime/internal/pkg/chat/application/event"
	"collabhub-realtime/internal/pkg/chat/application/usecase"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// StartConversationController finds or creates the conversation with a recipient,
// optionally sending a first message.
type StartConversationController struct {
	UC      *usecase.StartConversationUseCase
	Router  *engine.Router
	Timeout time.Duration
}

func NewStartConversationController(repo repository.ChatRepository, router *engine.Router, timeout time.Duration) *StartConversationController {
	return &StartConversationController{UC: usecase.NewStartConversationUseCase(repo), Router: router, Timeout: timeout}
}

type startConversationRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Message     string `json:"message"`
}

func (h *StartConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId is required"})
			return
		}
		caller := callerOf(c)

		if strings.TrimSpace(req.Message) != "" {
			if _, err := h.Router.SendMessage(c.Request.Context(), nil, caller.UserID, event.SendMessage{ReceiverID: req.RecipientID, Content: req.Message}); err != nil {
				writeError(c, err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		conv, err := h.UC.Execute(ctx, usecase.StartConversationInput{InitiatorID: caller.UserID, RecipientID: req.RecipientID})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, conv.SummaryFor(caller.UserID))
	}
}
