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

// NotificationController serves the caller's notifications.
type NotificationController struct {
	List    *usecase.ListNotificationsUseCase
	Unread  *usecase.UnreadCountUseCase
	Router  *engine.Router
	Timeout time.Duration
}

func NewNotificationController(repo repository.ChatRepository, router *engine.Router, timeout time.Duration) *NotificationController {
	return &NotificationController{
		List:    usecase.NewListNotificationsUseCase(repo),
		Unread:  usecase.NewUnreadCountUseCase(repo),
		Router:  router,
		Timeout: timeout,
	}
}

// ListHandle returns the newest notifications, at most 50.
func (h *NotificationController) ListHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		items, err := h.List.Execute(ctx, callerOf(c).UserID, queryInt(c, "limit", usecase.DefaultNotificationLimit))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, event.NotificationsRecent{Notifications: items})
	}
}

func (h *NotificationController) UnreadHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		n, err := h.Unread.Notifications(ctx, callerOf(c).UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, event.UnreadCount{Count: n})
	}
}

type markReadRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// MarkReadHandle marks notifications read by id or all at once.
func (h *NotificationController) MarkReadHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req markReadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		n, err := h.Router.MarkNotificationsRead(c.Request.Context(), nil, callerOf(c).UserID, event.MarkNotificationsRead{IDs: req.IDs, All: req.All})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, event.UnreadCount{Count: n})
	}
}
