package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// CreateNotificationInput is a notify request raised by another subsystem.
type CreateNotificationInput struct {
	RecipientID string
	Type        chat.NotificationType
	Title       string
	Message     string
	ActionRef   *string
}

// CreateNotificationUseCase persists a notification for its recipient.
type CreateNotificationUseCase struct {
	Repo repository.ChatRepository
}

func NewCreateNotificationUseCase(repo repository.ChatRepository) *CreateNotificationUseCase {
	return &CreateNotificationUseCase{Repo: repo}
}

func (uc *CreateNotificationUseCase) Execute(ctx context.Context, in CreateNotificationInput) (*chat.Notification, error) {
	draft, err := chat.NewNotificationDraft(in.RecipientID, in.Type, in.Title, in.Message, in.ActionRef)
	if err != nil {
		return nil, err
	}
	return uc.ExecuteDraft(ctx, draft)
}

// ExecuteDraft persists an already validated draft.
func (uc *CreateNotificationUseCase) ExecuteDraft(ctx context.Context, draft chat.NotificationDraft) (*chat.Notification, error) {
	return withRetry(ctx, func(ctx context.Context) (*chat.Notification, error) {
		return uc.Repo.CreateNotification(ctx, draft)
	})
}
