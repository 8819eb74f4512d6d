package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	queueadapter "collabhub-realtime/internal/infrastructure/queue/adapter"
	queueport "collabhub-realtime/internal/infrastructure/queue/port"
	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	"collabhub-realtime/internal/pkg/chat/application/task"
)

// EnqueueNotificationController lets other subsystems raise a notification
// asynchronously. The worker runs it through the event router.
type EnqueueNotificationController struct {
	Q queueport.Client
}

func NewEnqueueNotificationController(client queueport.Client) *EnqueueNotificationController {
	return &EnqueueNotificationController{Q: client}
}

type enqueueNotificationRequest struct {
	RecipientID string  `json:"recipientId" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Message     string  `json:"message"`
	ActionRef   *string `json:"actionRef"`
}

// Handle validates the request up front, then enqueues a notify task.
func (h *EnqueueNotificationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req enqueueNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := chat.NewNotificationDraft(req.RecipientID, chat.NotificationType(req.Type), req.Title, req.Message, req.ActionRef); err != nil {
			writeError(c, err)
			return
		}

		t, err := task.NewNotifyTask(task.NotifyTaskPayload(req))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task payload"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		opts := queueport.EnqueueOption{Queue: queueadapter.NotificationsQueue, MaxRetry: 20, Timeout: 30 * time.Second}
		id, err := h.Q.Enqueue(ctx, t, opts)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue notification"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":      "queued",
			"taskId":      id,
			"recipientId": req.RecipientID,
		})
	}
}
