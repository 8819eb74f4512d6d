package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// StartConversationInput names the two parties of a direct conversation.
type StartConversationInput struct {
	InitiatorID string
	RecipientID string
}

// StartConversationUseCase resolves the canonical conversation of a pair, creating it on first use.
type StartConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewStartConversationUseCase(repo repository.ChatRepository) *StartConversationUseCase {
	return &StartConversationUseCase{Repo: repo}
}

func (uc *StartConversationUseCase) Execute(ctx context.Context, in StartConversationInput) (*chat.Conversation, error) {
	if err := chat.ValidateUserID("initiatorId", in.InitiatorID); err != nil {
		return nil, err
	}
	if err := chat.ValidateUserID("recipientId", in.RecipientID); err != nil {
		return nil, err
	}
	if in.InitiatorID == in.RecipientID {
		return nil, &chat.ValidationError{Field: "recipientId", Message: "cannot start a conversation with yourself", Err: chat.ErrSelfConversation}
	}
	return withRetry(ctx, func(ctx context.Context) (*chat.Conversation, error) {
		return uc.Repo.FindOrCreateConversation(ctx, in.InitiatorID, in.RecipientID)
	})
}
