package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// GetMessageInput carries parameters to fetch messages of a conversation
type GetMessageInput struct {
	ConversationID string
	ViewerID       string
	Limit          int
	Offset         int
}

// GetMessageUseCase fetches messages for a conversation the viewer takes part in,
// oldest first.
type GetMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessageUseCase(repo repository.ChatRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

// Execute returns messages for the conversation honoring limit/offset
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.Message, error) {
	if in.ConversationID == "" {
		return nil, chat.Invalid("conversationId", "is required")
	}
	a, b, ok := chat.ParticipantsOf(in.ConversationID)
	if !ok {
		return nil, chat.Invalid("conversationId", "is malformed")
	}
	if in.ViewerID != a && in.ViewerID != b {
		return nil, chat.ErrNotParticipant
	}
	return withRetry(ctx, func(ctx context.Context) ([]chat.Message, error) {
		return uc.Repo.ListMessages(ctx, in.ConversationID, in.Limit, in.Offset)
	})
}
