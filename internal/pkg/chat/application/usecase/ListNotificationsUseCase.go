package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// DefaultNotificationLimit caps notification listings.
const DefaultNotificationLimit = 50

// ListNotificationsUseCase returns the newest notifications of a recipient.
type ListNotificationsUseCase struct {
	Repo repository.ChatRepository
}

func NewListNotificationsUseCase(repo repository.ChatRepository) *ListNotificationsUseCase {
	return &ListNotificationsUseCase{Repo: repo}
}

func (uc *ListNotificationsUseCase) Execute(ctx context.Context, recipientID string, limit int) ([]chat.Notification, error) {
	if err := chat.ValidateUserID("recipientId", recipientID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultNotificationLimit {
		limit = DefaultNotificationLimit
	}
	return withRetry(ctx, func(ctx context.Context) ([]chat.Notification, error) {
		return uc.Repo.ListRecentNotifications(ctx, recipientID, limit)
	})
}
