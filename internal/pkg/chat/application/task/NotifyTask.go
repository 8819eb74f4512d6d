package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hibiken/asynq"

	qport "collabhub-realtime/internal/infrastructure/queue/port"
	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	"collabhub-realtime/internal/pkg/chat/application/usecase"
)

// NotifyTaskType is the queue task other subsystems enqueue to notify a user.
const NotifyTaskType = "notification:create"

// NotifyTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type NotifyTaskPayload struct {
	RecipientID string  `json:"recipientId"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	ActionRef   *string `json:"actionRef,omitempty"`
}

// Notifier is the part of the event router the task needs.
type Notifier interface {
	Notify(ctx context.Context, in usecase.CreateNotificationInput) (*chat.Notification, error)
}

// NewNotifyTask encodes p as a queue task.
func NewNotifyTask(p NotifyTaskPayload) (qport.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return qport.Task{}, err
	}
	return qport.Task{Type: NotifyTaskType, Payload: b}, nil
}

// HandleNotify decodes a notify task and runs it through n. Malformed payloads and
// rejected requests are not retried.
func HandleNotify(n Notifier) qport.Handler {
	return func(ctx context.Context, t qport.Task) error {
		var p NotifyTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", NotifyTaskType, err, asynq.SkipRetry)
		}

		notif, err := n.Notify(ctx, usecase.CreateNotificationInput{
			RecipientID: p.RecipientID,
			Type:        chat.NotificationType(p.Type),
			Title:       p.Title,
			Message:     p.Message,
			ActionRef:   p.ActionRef,
		})
		if err != nil {
			if chat.IsValidation(err) {
				log.Warn("rejected notify task", "recipient", p.RecipientID, "err", err)
				return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
			}
			// persistence errors are retried by the queue backend
			return err
		}
		log.Debug("notification created", "id", notif.ID, "recipient", notif.RecipientID, "type", notif.Type)
		return nil
	}
}

// RegisterNotifyTask binds the notify handler to the provided server.
func RegisterNotifyTask(srv qport.Server, n Notifier) {
	srv.Register(NotifyTaskType, HandleNotify(n))
}
