package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// ListConversationsUseCase returns the caller's conversations, most recently active first.
type ListConversationsUseCase struct {
	Repo repository.ChatRepository
}

func NewListConversationsUseCase(repo repository.ChatRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	if err := chat.ValidateUserID("userId", userID); err != nil {
		return nil, err
	}
	return withRetry(ctx, func(ctx context.Context) ([]chat.ConversationSummary, error) {
		return uc.Repo.ListConversations(ctx, userID)
	})
}
