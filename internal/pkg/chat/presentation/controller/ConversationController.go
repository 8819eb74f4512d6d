package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"collabhub-realtime/internal/pkg/chat/application/engine"
	"collabhub-realtime/internal/pkg/chat/application/event"
	"collabhub-realtime/internal/pkg/chat/application/usecase"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// ConversationController serves conversation listings, mark-read and unread totals.
type ConversationController struct {
	List    *usecase.ListConversationsUseCase
	Get     *usecase.GetConversationUseCase
	Unread  *usecase.UnreadCountUseCase
	Router  *engine.Router
	Timeout time.Duration
}

func NewConversationController(repo repository.ChatRepository, router *engine.Router, timeout time.Duration) *ConversationController {
	return &ConversationController{
		List:    usecase.NewListConversationsUseCase(repo),
		Get:     usecase.NewGetConversationUseCase(repo),
		Unread:  usecase.NewUnreadCountUseCase(repo),
		Router:  router,
		Timeout: timeout,
	}
}

// ListHandle returns the caller's conversations, most recently active first.
func (h *ConversationController) ListHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		convs, err := h.List.Execute(ctx, callerOf(c).UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		total := 0
		for _, cv := range convs {
			total += cv.UnreadCount
		}
		c.JSON(http.StatusOK, event.ConversationsSummary{Conversations: convs, UnreadCount: total})
	}
}

// DetailHandle returns one conversation projected for the caller.
func (h *ConversationController) DetailHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		summary, err := h.Get.Execute(ctx, c.Param("conversationId"), callerOf(c).UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// MarkReadHandle marks every message of the conversation addressed to the caller read.
func (h *ConversationController) MarkReadHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		unread, err := h.Router.MarkConversationRead(c.Request.Context(), nil, callerOf(c).UserID,
			event.ReadConversation{ConversationID: c.Param("conversationId")})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "unreadCount": unread})
	}
}

// UnreadHandle returns the caller's unread message total.
func (h *ConversationController) UnreadHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		n, err := h.Unread.Messages(ctx, callerOf(c).UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unreadCount": n})
	}
}
