package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"collabhub-realtime/internal/pkg/chat/application/usecase"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// GetMessageController lists the messages of a conversation, oldest first.
type GetMessageController struct {
	UC      *usecase.GetMessageUseCase
	Timeout time.Duration
}

func NewGetMessageController(repo repository.ChatRepository, timeout time.Duration) *GetMessageController {
	return &GetMessageController{UC: usecase.NewGetMessageUseCase(repo), Timeout: timeout}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")

		limit := queryInt(c, "limit", 50)
		if limit == 0 {
			limit = 50
		}
		offset := queryInt(c, "offset", 0)

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetMessageInput{
			ConversationID: conversationID,
			ViewerID:       callerOf(c).UserID,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"limit":    limit,
			"offset":   offset,
			"count":    len(msgs),
		})
	}
}
