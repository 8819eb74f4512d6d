package usecase

import (
	"context"

	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// UnreadCounts holds a user's unread totals as recorded by the store.
type UnreadCounts struct {
	Messages      int
	Notifications int
}

// UnreadCountUseCase reads unread totals straight from the store.
type UnreadCountUseCase struct {
	Repo repository.ChatRepository
}

func NewUnreadCountUseCase(repo repository.ChatRepository) *UnreadCountUseCase {
	return &UnreadCountUseCase{Repo: repo}
}

func (uc *UnreadCountUseCase) Notifications(ctx context.Context, userID string) (int, error) {
	return withRetry(ctx, func(ctx context.Context) (int, error) {
		return uc.Repo.UnreadNotificationCount(ctx, userID)
	})
}

func (uc *UnreadCountUseCase) Messages(ctx context.Context, userID string) (int, error) {
	return withRetry(ctx, func(ctx context.Context) (int, error) {
		return uc.Repo.UnreadMessageCount(ctx, userID)
	})
}

func (uc *UnreadCountUseCase) Execute(ctx context.Context, userID string) (UnreadCounts, error) {
	var out UnreadCounts
	var err error
	if out.Messages, err = uc.Messages(ctx, userID); err != nil {
		return UnreadCounts{}, err
	}
	if out.Notifications, err = uc.Notifications(ctx, userID); err != nil {
		return UnreadCounts{}, err
	}
	return out, nil
}
