package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// GetConversationUseCase loads one conversation for a participant.
type GetConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewGetConversationUseCase(repo repository.ChatRepository) *GetConversationUseCase {
	return &GetConversationUseCase{Repo: repo}
}

func (uc *GetConversationUseCase) Execute(ctx context.Context, conversationID, viewerID string) (chat.ConversationSummary, error) {
	a, b, ok := chat.ParticipantsOf(conversationID)
	if !ok {
		return chat.ConversationSummary{}, chat.Invalid("conversationId", "is malformed")
	}
	if viewerID != a && viewerID != b {
		return chat.ConversationSummary{}, chat.ErrNotParticipant
	}
	conv, err := withRetry(ctx, func(ctx context.Context) (*chat.Conversation, error) {
		return uc.Repo.GetConversation(ctx, conversationID)
	})
	if err != nil {
		return chat.ConversationSummary{}, err
	}
	return conv.SummaryFor(viewerID), nil
}
